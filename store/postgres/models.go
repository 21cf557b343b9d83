package postgres

import (
	"encoding/json"
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

	ID              string            `grove:"id,pk"`
	MemberID        string            `grove:"member_id"`
	TemplateID      *string           `grove:"template_id"`
	Name            string            `grove:"name"`
	BalanceAmount   int64             `grove:"balance_amount"`
	BalanceCurrency string            `grove:"balance_currency"`
	FocAmount       int64             `grove:"foc_amount"`
	FocCurrency     string            `grove:"foc_currency"`
	Status          string            `grove:"status"`
	Version         int64             `grove:"version"`
	Remarks         string            `grove:"remarks"`
	CreatedBy       string            `grove:"created_by"`
	HandledBy       string            `grove:"handled_by"`
	ClosedAt        *time.Time        `grove:"closed_at"`
	AppID           string            `grove:"app_id"`
	Metadata        map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
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

	ID            string    `grove:"id,pk"`
	Name          string    `grove:"name"`
	PriceAmount   int64     `grove:"price_amount"`
	PriceCurrency string    `grove:"price_currency"`
	FocAmount     int64     `grove:"foc_amount"`
	FocCurrency   string    `grove:"foc_currency"`
	AppID         string    `grove:"app_id"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
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

	ID                  string    `grove:"id,pk"`
	VoucherID           string    `grove:"voucher_id"`
	Kind                string    `grove:"kind"`
	DeltaAmount         int64     `grove:"delta_amount"`
	DeltaCurrency       string    `grove:"delta_currency"`
	BalanceAmount       int64     `grove:"balance_amount"`
	BalanceCurrency     string    `grove:"balance_currency"`
	FocAmount           int64     `grove:"foc_amount"`
	FocCurrency         string    `grove:"foc_currency"`
	TopUpAmount         int64     `grove:"top_up_amount"`
	TopUpCurrency       string    `grove:"top_up_currency"`
	TransferredAmount   int64     `grove:"transferred_amount"`
	TransferredCurrency string    `grove:"transferred_currency"`
	CounterpartyRef     string    `grove:"counterparty_ref"`
	CreatedBy           string    `grove:"created_by"`
	HandledBy           string    `grove:"handled_by"`
	Remark              string    `grove:"remark"`
	LoggedAt            time.Time `grove:"logged_at"`
	CreatedAt           time.Time `grove:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"`
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

	ID           string            `grove:"id,pk"`
	MemberID     string            `grove:"member_id"`
	Name         string            `grove:"name"`
	Lines        json.RawMessage   `grove:"lines,type:jsonb"`
	Customizable bool              `grove:"customizable"`
	Status       string            `grove:"status"`
	Remarks      string            `grove:"remarks"`
	CreatedBy    string            `grove:"created_by"`
	AppID        string            `grove:"app_id"`
	Metadata     map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt    time.Time         `grove:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"`
}

func toPackageModel(p *pack.Package) *packageModel {
	lines, _ := json.Marshal(p.Lines) //nolint:errcheck // best-effort

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

	var lines []pack.LineItem
	if len(m.Lines) > 0 {
		_ = json.Unmarshal(m.Lines, &lines) //nolint:errcheck // best-effort
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

// parseActor tolerates empty actor columns: not every row records who
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
