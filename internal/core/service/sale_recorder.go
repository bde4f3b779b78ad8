package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/core/textsale"
	"github.com/katalis/laku/internal/port"
)

// SaleRequest describes one sale to record. With UseListPrice the unit price
// is taken from the inventory row instead of Price. A non-empty RequestID is
// claimed on the idempotency guard, when one is configured.
type SaleRequest struct {
	RequestID    string
	ItemName     string
	Quantity     int
	Price        decimal.Decimal
	UseListPrice bool
}

func (r SaleRequest) validate() error {
	if strings.TrimSpace(r.ItemName) == "" {
		return domain.InvalidArgumentf("item name is required")
	}
	if r.Quantity <= 0 {
		return domain.InvalidArgumentf("quantity must be positive, got %d", r.Quantity)
	}
	if r.UseListPrice {
		return nil
	}
	if !r.Price.IsPositive() {
		return domain.InvalidArgumentf("price must be positive, got %s", r.Price)
	}
	return domain.CheckPriceRange(r.Price)
}

// ParseSaleText turns free text like "Sold 3 eggs for $5" into a request.
func ParseSaleText(text string) (SaleRequest, error) {
	parsed, ok := textsale.Parse(text)
	if !ok {
		return SaleRequest{}, domain.InvalidArgumentf("could not parse a sale from %q", text)
	}
	return SaleRequest{
		ItemName: parsed.ItemName,
		Quantity: parsed.Quantity,
		Price:    parsed.Price,
	}, nil
}

func (s *LedgerService) RecordSale(ctx context.Context, itemName string, quantity int, price decimal.Decimal) (*domain.SaleReceipt, error) {
	return s.Submit(ctx, SaleRequest{ItemName: itemName, Quantity: quantity, Price: price})
}

func (s *LedgerService) RecordSaleAtListPrice(ctx context.Context, itemName string, quantity int) (*domain.SaleReceipt, error) {
	return s.Submit(ctx, SaleRequest{ItemName: itemName, Quantity: quantity, UseListPrice: true})
}

func (s *LedgerService) RecordSaleText(ctx context.Context, text string) (*domain.SaleReceipt, error) {
	req, err := ParseSaleText(text)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, req)
}

// Submit records a sale atomically: lock and check stock, insert the sale,
// decrement stock and read back the new stock and ledger totals. Nothing is
// written unless every step succeeds.
func (s *LedgerService) Submit(ctx context.Context, req SaleRequest) (*domain.SaleReceipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.ItemName = strings.TrimSpace(req.ItemName)

	if req.RequestID != "" && s.guard != nil {
		ok, err := s.guard.Claim(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	receipt, err := s.recordSale(ctx, req)
	if err != nil {
		if req.RequestID != "" && s.guard != nil {
			if relErr := s.guard.Release(context.WithoutCancel(ctx), req.RequestID); relErr != nil {
				s.logger.Warn("failed to release request id", zap.String("request_id", req.RequestID), zap.Error(relErr))
			}
		}
		s.logger.Debug("sale rejected",
			zap.String("item", req.ItemName),
			zap.Int("quantity", req.Quantity),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("sale recorded",
		zap.Int64("sale_id", receipt.Sale.ID),
		zap.String("item", receipt.Sale.ItemName),
		zap.Int("quantity", receipt.Sale.Quantity),
		zap.String("price", receipt.Sale.Price.String()),
		zap.Int("remaining", receipt.NewQuantity),
	)
	return receipt, nil
}

func (s *LedgerService) recordSale(ctx context.Context, req SaleRequest) (*domain.SaleReceipt, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var receipt *domain.SaleReceipt
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		handle, err := reserveStock(ctx, tx, domain.ItemByName(req.ItemName), req.Quantity)
		if err != nil {
			return err
		}

		price := req.Price
		if req.UseListPrice {
			price = handle.ListPrice
			if !price.IsPositive() {
				return domain.InvalidArgumentf("item %q has no list price", handle.ItemName)
			}
		}

		sale, err := tx.InsertSale(ctx, domain.Sale{
			ItemName:  handle.ItemName,
			Quantity:  req.Quantity,
			Price:     price,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}

		remaining, err := tx.DecrementStock(ctx, handle.ItemID, req.Quantity)
		if err != nil {
			return err
		}

		totals, err := tx.SalesTotals(ctx)
		if err != nil {
			return err
		}

		receipt = &domain.SaleReceipt{
			Sale:             *sale,
			ItemID:           handle.ItemID,
			PreviousQuantity: handle.Available,
			NewQuantity:      remaining,
			Totals:           totals,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// DeleteSale removes the sale with the given id, or every sale when target
// is "all". Inventory quantities are not restored.
func (s *LedgerService) DeleteSale(ctx context.Context, target string) (domain.DeletionResult, error) {
	target = strings.TrimSpace(target)
	if strings.EqualFold(target, "all") {
		return s.DeleteAllSales(ctx)
	}

	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil || id <= 0 {
		return domain.DeletionResult{}, domain.InvalidArgumentf("sale id must be a positive integer or \"all\", got %q", target)
	}
	return s.DeleteSaleByID(ctx, id)
}

func (s *LedgerService) DeleteSaleByID(ctx context.Context, id int64) (domain.DeletionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result domain.DeletionResult
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		deleted, err := tx.DeleteSale(ctx, id)
		if err != nil {
			return err
		}
		result = domain.DeletionResult{Deleted: deleted, Count: 1}
		return nil
	})
	if err != nil {
		return domain.DeletionResult{}, err
	}

	s.logger.Info("sale deleted", zap.Int64("sale_id", id))
	return result, nil
}

func (s *LedgerService) DeleteAllSales(ctx context.Context) (domain.DeletionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result domain.DeletionResult
	err := s.repo.WithTx(ctx, func(tx port.LedgerTx) error {
		n, err := tx.DeleteAllSales(ctx)
		if err != nil {
			return err
		}
		result = domain.DeletionResult{All: true, Count: n}
		return nil
	})
	if err != nil {
		return domain.DeletionResult{}, err
	}

	s.logger.Info("all sales deleted", zap.Int64("count", result.Count))
	return result, nil
}
