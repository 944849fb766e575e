package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/metrics"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/ledger"
)

// Service defines the server ingestion logic for queued offline activity.
type Service interface {
	// SubmitSale applies a queued sale exactly once. Validation failures
	// are rejected before any persistence; everything else is accepted.
	// An offline sale already happened and is never refused for business
	// reasons.
	SubmitSale(ctx context.Context, tenantID uuid.UUID, req SubmitSaleRequest) (*SubmitSaleResponse, error)

	// SubmitActions applies a batch of queued actions, each independently
	// and idempotently.
	SubmitActions(ctx context.Context, tenantID uuid.UUID, req SubmitActionsRequest) (*SubmitActionsResponse, error)
}

type service struct{ repo Repository }

// NewService creates a new ingestion service.
func NewService(repo Repository) Service { return &service{repo: repo} }

// ErrValidation marks category-2 failures: the payload needs client-side
// correction and must not be queued or retried as-is.
type ErrValidation struct{ msg string }

func (e *ErrValidation) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &ErrValidation{msg: fmt.Sprintf(format, args...)}
}

func (s *service) SubmitSale(ctx context.Context, tenantID uuid.UUID, req SubmitSaleRequest) (*SubmitSaleResponse, error) {
	if err := validateSale(req); err != nil {
		return nil, err
	}

	operatorID, err := uuid.Parse(req.OperatorID)
	if err != nil {
		return nil, invalid("invalid operator_id: %v", err)
	}

	// Fast path: the reference has already been applied.
	if id, found, err := s.repo.FindByClientRef(ctx, tenantID, req.ClientRef); err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	} else if found {
		metrics.SyncDuplicateTotal.Inc()
		return &SubmitSaleResponse{ServerOrderID: id, Duplicate: true}, nil
	}

	// Anomalies are logged for review, not used to reject: the sale is a
	// completed physical event.
	if active, err := s.repo.OperatorActive(ctx, tenantID, operatorID); err == nil && !active {
		log.Printf("WARN: offline sale %s captured by inactive operator %s (tenant %s)",
			req.ClientRef, operatorID, tenantID)
	}

	o := buildOrder(tenantID, operatorID, req)

	start := time.Now()
	result, err := s.repo.ApplySale(ctx, o)
	if err != nil {
		metrics.SyncPushTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("apply sale %s: %w", req.ClientRef, err)
	}
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	if result.Duplicate {
		metrics.SyncDuplicateTotal.Inc()
	} else {
		metrics.SyncPushTotal.WithLabelValues("synced").Inc()
	}
	return &SubmitSaleResponse{ServerOrderID: result.OrderID, Duplicate: result.Duplicate}, nil
}

func (s *service) SubmitActions(ctx context.Context, tenantID uuid.UUID, req SubmitActionsRequest) (*SubmitActionsResponse, error) {
	resp := &SubmitActionsResponse{Total: len(req.Actions), Errors: []ActionError{}}
	for _, a := range req.Actions {
		if a.ClientRef == "" || a.Type == "" {
			resp.Errors = append(resp.Errors, ActionError{ClientRef: a.ClientRef, Error: "client_ref and type are required"})
			continue
		}
		operatorID, err := uuid.Parse(a.OperatorID)
		if err != nil {
			resp.Errors = append(resp.Errors, ActionError{ClientRef: a.ClientRef, Error: "invalid operator_id"})
			continue
		}
		rec := &ActionRecord{
			ID:         uuid.New(),
			TenantID:   tenantID,
			ClientRef:  a.ClientRef,
			OperatorID: operatorID,
			Type:       strings.ToUpper(a.Type),
			Detail:     a.Detail,
			OccurredAt: a.OccurredAt,
		}
		// Duplicates count as synced; the terminal must stop retrying them.
		if _, err := s.repo.RecordAction(ctx, rec); err != nil {
			resp.Errors = append(resp.Errors, ActionError{ClientRef: a.ClientRef, Error: err.Error()})
			continue
		}
		resp.Synced++
	}
	return resp, nil
}

// validateSale enforces the structural contract. Business-rule checks
// (stock levels, operator status) deliberately do not appear here.
func validateSale(req SubmitSaleRequest) error {
	if req.ClientRef == "" {
		return invalid("client_ref is required")
	}
	if req.OperatorID == "" {
		return invalid("operator_id is required")
	}
	if len(req.Lines) == 0 {
		return invalid("sale must contain at least one line item")
	}
	for i, l := range req.Lines {
		if l.Quantity <= 0 {
			return invalid("line %d: quantity must be > 0", i)
		}
		if l.UnitPriceCents < 0 {
			return invalid("line %d: unit_price_cents cannot be negative", i)
		}
	}
	if len(req.Payments) == 0 {
		return invalid("sale must contain at least one payment leg")
	}
	for i, p := range req.Payments {
		if p.AmountCents < 0 {
			return invalid("payment %d: amount_cents cannot be negative", i)
		}
		switch PaymentMethod(strings.ToUpper(p.Method)) {
		case PaymentCash, PaymentCard, PaymentMobileMoney, PaymentVoucher:
		default:
			return invalid("payment %d: invalid method %q", i, p.Method)
		}
	}
	return nil
}

// buildOrder assembles the server order graph from the wire payload,
// recomputing totals from the captured lines.
func buildOrder(tenantID, operatorID uuid.UUID, req SubmitSaleRequest) *ServerOrder {
	o := &ServerOrder{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ClientRef:     req.ClientRef,
		OperatorID:    operatorID,
		OrderNumber:   generateOrderNumber(),
		Status:        StatusCompleted,
		OfflineOrigin: true,
		CapturedAt:    req.CapturedAt,
	}

	for _, l := range req.Lines {
		line := &OrderLine{
			ID:             uuid.New(),
			OrderID:        o.ID,
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			DiscountCents:  l.DiscountCents,
			TaxRateBps:     l.TaxRateBps,
			TaxCents:       l.TaxCents,
			LineTotalCents: int64(l.Quantity)*l.UnitPriceCents - l.DiscountCents + l.TaxCents,
		}
		if l.ProductID != "" {
			if pid, err := uuid.Parse(l.ProductID); err == nil {
				line.ProductID = &pid
			} else {
				log.Printf("WARN: sale %s references unparseable product id %q; line kept without deduction",
					req.ClientRef, l.ProductID)
			}
		}
		o.Lines = append(o.Lines, line)
		o.SubtotalCents += int64(l.Quantity) * l.UnitPriceCents
		o.DiscountCents += l.DiscountCents
		o.TaxCents += l.TaxCents
	}
	o.TotalCents = o.SubtotalCents - o.DiscountCents + o.TaxCents

	for _, p := range req.Payments {
		o.Payments = append(o.Payments, &PaymentLeg{
			ID:            uuid.New(),
			OrderID:       o.ID,
			Method:        PaymentMethod(strings.ToUpper(p.Method)),
			AmountCents:   p.AmountCents,
			TenderedCents: p.TenderedCents,
			ChangeCents:   p.ChangeCents,
		})
	}
	return o
}

// computeSaleAmounts partitions payment legs into cash and non-cash and
// derives the ledger amounts. Revenue is recognized from the amounts
// actually tendered so the posting always balances; a mismatch against the
// order total is an anomaly to log, not a reason to reject.
func computeSaleAmounts(o *ServerOrder, cogsCents int64) ledger.SaleAmounts {
	var cash, nonCash int64
	for _, p := range o.Payments {
		if p.Method == PaymentCash {
			cash += p.AmountCents
		} else {
			nonCash += p.AmountCents
		}
	}
	paid := cash + nonCash
	if paid != o.TotalCents {
		log.Printf("WARN: order %s payment legs sum %d != total %d; posting from tendered amounts",
			o.ClientRef, paid, o.TotalCents)
	}
	return ledger.SaleAmounts{
		CashTotal:    cash,
		NonCashTotal: nonCash,
		Revenue:      paid - o.TaxCents,
		Tax:          o.TaxCents,
		COGS:         cogsCents,
	}
}

// generateOrderNumber creates a human-readable order number: ORD-YYYYMMDD-XXXX
func generateOrderNumber() string {
	date := time.Now().UTC().Format("20060102")
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("ORD-%s-%s", date, suffix)
}
