package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/types"
	"github.com/clubworks/prepaid/voucher"
)

// ==================== Voucher models ====================

type voucherModel struct {
	grove.BaseModel `grove:"table:prepaid_vouchers"`

	ID              string            `grove:"id,pk"            bson:"_id"`
	MemberID        string            `grove:"member_id"        bson:"member_id"`
	TemplateID      *string           `grove:"template_id"      bson:"template_id,omitempty"`
	Name            string            `grove:"name"             bson:"name"`
	BalanceAmount   int64             `grove:"balance_amount"   bson:"balance_amount"`
	BalanceCurrency string            `grove:"balance_currency" bson:"balance_currency"`
	FocAmount       int64             `grove:"foc_amount"       bson:"foc_amount"`
	FocCurrency     string            `grove:"foc_currency"     bson:"foc_currency"`
	Status          string            `grove:"status"           bson:"status"`
	Version         int64             `grove:"version"          bson:"version"`
	Remarks         string            `grove:"remarks"          bson:"remarks"`
	CreatedBy       string            `grove:"created_by"       bson:"created_by"`
	HandledBy       string            `grove:"handled_by"       bson:"handled_by"`
	ClosedAt        *time.Time        `grove:"closed_at"        bson:"closed_at,omitempty"`
	AppID           string            `grove:"app_id"           bson:"app_id"`
	Metadata        map[string]string `grove:"metadata"         bson:"metadata,omitempty"`
	CreatedAt       time.Time         `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"       bson:"updated_at"`
}

func toVoucherModel(v *voucher.Voucher) *voucherModel {
	var templateID *string
	if v.TemplateID != nil {
		s := v.TemplateID.String()
		templateID = &s
	}

	return &voucherModel{
		ID:              v.ID.String(),
		MemberID:        v.MemberID.String(),
		TemplateID:      templateID,
		Name:            v.Name,
		BalanceAmount:   v.Balance.Amount,
		BalanceCurrency: v.Balance.Currency,
		FocAmount:       v.FreeOfCharge.Amount,
		FocCurrency:     v.FreeOfCharge.Currency,
		Status:          string(v.Status),
		Version:         v.Version,
		Remarks:         v.Remarks,
		CreatedBy:       v.CreatedBy.String(),
		HandledBy:       v.HandledBy.String(),
		ClosedAt:        v.ClosedAt,
		AppID:           v.AppID,
		Metadata:        v.Metadata,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

func fromVoucherModel(m *voucherModel) (*voucher.Voucher, error) {
	voucherID, err := id.ParseVoucherID(m.ID)
	if err != nil {
		return nil, err
	}
	memberID, err := id.ParseMemberID(m.MemberID)
	if err != nil {
		return nil, err
	}

	var templateID *id.TemplateID
	if m.TemplateID != nil && *m.TemplateID != "" {
		tid, err := id.ParseTemplateID(*m.TemplateID)
		if err != nil {
			return nil, err
		}
		templateID = &tid
	}

	return &voucher.Voucher{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           voucherID,
		MemberID:     memberID,
		TemplateID:   templateID,
		Name:         m.Name,
		Balance:      types.Money{Amount: m.BalanceAmount, Currency: m.BalanceCurrency},
		FreeOfCharge: types.Money{Amount: m.FocAmount, Currency: m.FocCurrency},
		Status:       voucher.Status(m.Status),
		Version:      m.Version,
		Remarks:      m.Remarks,
		CreatedBy:    parseActor(m.CreatedBy),
		HandledBy:    parseActor(m.HandledBy),
		ClosedAt:     m.ClosedAt,
		AppID:        m.AppID,
		Metadata:     m.Metadata,
	}, nil
}

// ==================== Template models ====================

type templateModel struct {
	grove.BaseModel `grove:"table:prepaid_voucher_templates"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	Name          string    `grove:"name"           bson:"name"`
	PriceAmount   int64     `grove:"price_amount"   bson:"price_amount"`
	PriceCurrency string    `grove:"price_currency" bson:"price_currency"`
	FocAmount     int64     `grove:"foc_amount"     bson:"foc_amount"`
	FocCurrency   string    `grove:"foc_currency"   bson:"foc_currency"`
	AppID         string    `grove:"app_id"         bson:"app_id"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toTemplateModel(t *voucher.Template) *templateModel {
	return &templateModel{
		ID:            t.ID.String(),
		Name:          t.Name,
		PriceAmount:   t.Price.Amount,
		PriceCurrency: t.Price.Currency,
		FocAmount:     t.FOC.Amount,
		FocCurrency:   t.FOC.Currency,
		AppID:         t.AppID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func fromTemplateModel(m *templateModel) (*voucher.Template, error) {
	templateID, err := id.ParseTemplateID(m.ID)
	if err != nil {
		return nil, err
	}

	return &voucher.Template{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    templateID,
		Name:  m.Name,
		Price: types.Money{Amount: m.PriceAmount, Currency: m.PriceCurrency},
		FOC:   types.Money{Amount: m.FocAmount, Currency: m.FocCurrency},
		AppID: m.AppID,
	}, nil
}

// ==================== Transaction log models ====================

type logEntryModel struct {
	grove.BaseModel `grove:"table:prepaid_tx_log"`

	ID                  string    `grove:"id,pk"                bson:"_id"`
	VoucherID           string    `grove:"voucher_id"           bson:"voucher_id"`
	Kind                string    `grove:"kind"                 bson:"kind"`
	DeltaAmount         int64     `grove:"delta_amount"         bson:"delta_amount"`
	DeltaCurrency       string    `grove:"delta_currency"       bson:"delta_currency"`
	BalanceAmount       int64     `grove:"balance_amount"       bson:"balance_amount"`
	BalanceCurrency     string    `grove:"balance_currency"     bson:"balance_currency"`
	FocAmount           int64     `grove:"foc_amount"           bson:"foc_amount"`
	FocCurrency         string    `grove:"foc_currency"         bson:"foc_currency"`
	TopUpAmount         int64     `grove:"top_up_amount"        bson:"top_up_amount"`
	TopUpCurrency       string    `grove:"top_up_currency"      bson:"top_up_currency"`
	TransferredAmount   int64     `grove:"transferred_amount"   bson:"transferred_amount"`
	TransferredCurrency string    `grove:"transferred_currency" bson:"transferred_currency"`
	CounterpartyRef     string    `grove:"counterparty_ref"     bson:"counterparty_ref"`
	CreatedBy           string    `grove:"created_by"           bson:"created_by"`
	HandledBy           string    `grove:"handled_by"           bson:"handled_by"`
	Remark              string    `grove:"remark"               bson:"remark"`
	LoggedAt            time.Time `grove:"logged_at"            bson:"logged_at"`
	CreatedAt           time.Time `grove:"created_at"           bson:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"           bson:"updated_at"`
}

func toLogEntryModel(e *txlog.Entry) *logEntryModel {
	return &logEntryModel{
		ID:                  e.ID.String(),
		VoucherID:           e.VoucherID.String(),
		Kind:                string(e.Kind),
		DeltaAmount:         e.Delta.Amount,
		DeltaCurrency:       e.Delta.Currency,
		BalanceAmount:       e.Balance.Amount,
		BalanceCurrency:     e.Balance.Currency,
		FocAmount:           e.FocAmount.Amount,
		FocCurrency:         e.FocAmount.Currency,
		TopUpAmount:         e.TopUpAmount.Amount,
		TopUpCurrency:       e.TopUpAmount.Currency,
		TransferredAmount:   e.TransferredTotal.Amount,
		TransferredCurrency: e.TransferredTotal.Currency,
		CounterpartyRef:     e.CounterpartyRef,
		CreatedBy:           e.CreatedBy.String(),
		HandledBy:           e.HandledBy.String(),
		Remark:              e.Remark,
		LoggedAt:            e.At,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func fromLogEntryModel(m *logEntryModel) (*txlog.Entry, error) {
	entryID, err := id.ParseLogEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	voucherID, err := id.ParseVoucherID(m.VoucherID)
	if err != nil {
		return nil, err
	}

	return &txlog.Entry{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               entryID,
		VoucherID:        voucherID,
		Kind:             txlog.Kind(m.Kind),
		Delta:            types.Money{Amount: m.DeltaAmount, Currency: m.DeltaCurrency},
		Balance:          types.Money{Amount: m.BalanceAmount, Currency: m.BalanceCurrency},
		FocAmount:        types.Money{Amount: m.FocAmount, Currency: m.FocCurrency},
		TopUpAmount:      types.Money{Amount: m.TopUpAmount, Currency: m.TopUpCurrency},
		TransferredTotal: types.Money{Amount: m.TransferredAmount, Currency: m.TransferredCurrency},
		CounterpartyRef:  m.CounterpartyRef,
		CreatedBy:        parseActor(m.CreatedBy),
		HandledBy:        parseActor(m.HandledBy),
		Remark:           m.Remark,
		At:               m.LoggedAt,
	}, nil
}

// ==================== Package models ====================

type packageModel struct {
	grove.BaseModel `grove:"table:prepaid_packages"`

	ID           string            `grove:"id,pk"        bson:"_id"`
	MemberID     string            `grove:"member_id"    bson:"member_id"`
	Name         string            `grove:"name"         bson:"name"`
	Lines        []lineItemModel   `grove:"lines"        bson:"lines"`
	Customizable bool              `grove:"customizable" bson:"customizable"`
	Status       string            `grove:"status"       bson:"status"`
	Remarks      string            `grove:"remarks"      bson:"remarks"`
	CreatedBy    string            `grove:"created_by"   bson:"created_by"`
	AppID        string            `grove:"app_id"       bson:"app_id"`
	Metadata     map[string]string `grove:"metadata"     bson:"metadata,omitempty"`
	CreatedAt    time.Time         `grove:"created_at"   bson:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"   bson:"updated_at"`
}

type lineItemModel struct {
	ID                string  `bson:"id"`
	PackageID         string  `bson:"package_id"`
	ServiceID         string  `bson:"service_id"`
	UnitPriceAmount   int64   `bson:"unit_price_amount"`
	UnitPriceCurrency string  `bson:"unit_price_currency"`
	DiscountFactor    float64 `bson:"discount_factor"`
	Quantity          int64   `bson:"quantity"`
	Active            bool    `bson:"active"`
}

func toPackageModel(p *pack.Package) *packageModel {
	lines := make([]lineItemModel, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = lineItemModel{
			ID:                l.ID.String(),
			PackageID:         l.PackageID.String(),
			ServiceID:         l.ServiceID.String(),
			UnitPriceAmount:   l.UnitPrice.Amount,
			UnitPriceCurrency: l.UnitPrice.Currency,
			DiscountFactor:    l.DiscountFactor,
			Quantity:          l.Quantity,
			Active:            l.Active,
		}
	}

	return &packageModel{
		ID:           p.ID.String(),
		MemberID:     p.MemberID.String(),
		Name:         p.Name,
		Lines:        lines,
		Customizable: p.Customizable,
		Status:       string(p.Status),
		Remarks:      p.Remarks,
		CreatedBy:    p.CreatedBy.String(),
		AppID:        p.AppID,
		Metadata:     p.Metadata,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func fromPackageModel(m *packageModel) (*pack.Package, error) {
	packageID, err := id.ParsePackageID(m.ID)
	if err != nil {
		return nil, err
	}
	memberID, err := id.ParseMemberID(m.MemberID)
	if err != nil {
		return nil, err
	}

	lines := make([]pack.LineItem, len(m.Lines))
	for i, l := range m.Lines {
		lineID, err := id.ParseLineItemID(l.ID)
		if err != nil {
			return nil, err
		}
		serviceID, err := id.ParseServiceID(l.ServiceID)
		if err != nil {
			return nil, err
		}
		lines[i] = pack.LineItem{
			ID:             lineID,
			PackageID:      packageID,
			ServiceID:      serviceID,
			UnitPrice:      types.Money{Amount: l.UnitPriceAmount, Currency: l.UnitPriceCurrency},
			DiscountFactor: l.DiscountFactor,
			Quantity:       l.Quantity,
			Active:         l.Active,
		}
	}

	return &pack.Package{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           packageID,
		MemberID:     memberID,
		Name:         m.Name,
		Lines:        lines,
		Customizable: m.Customizable,
		Status:       pack.Status(m.Status),
		Remarks:      m.Remarks,
		CreatedBy:    parseActor(m.CreatedBy),
		AppID:        m.AppID,
		Metadata:     m.Metadata,
	}, nil
}

// parseActor tolerates empty actor columns: not every document records who
// handled it.
func parseActor(s string) id.MemberID {
	if s == "" {
		return id.ID{}
	}
	actor, err := id.ParseMemberID(s)
	if err != nil {
		return id.ID{}
	}
	return actor
}
