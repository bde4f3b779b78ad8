package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/core/service"
)

// CodecName is the gRPC content-subtype the Ledger service speaks.
// Clients must dial with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

const ledgerServiceName = "laku.v1.Ledger"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type RecordSaleRequest struct {
	RequestID    string          `json:"request_id"`
	ItemName     string          `json:"item_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	UseListPrice bool            `json:"use_list_price"`
}

type RecordSaleTextRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

type DeleteSaleRequest struct {
	Target string `json:"target"`
}

type ListInventoryRequest struct{}

type ListInventoryReply struct {
	Items []domain.InventoryItem `json:"items"`
}

type SummaryRequest struct{}

// LedgerServer is the server API of laku.v1.Ledger.
type LedgerServer interface {
	RecordSale(context.Context, *RecordSaleRequest) (*domain.SaleReceipt, error)
	RecordSaleText(context.Context, *RecordSaleTextRequest) (*domain.SaleReceipt, error)
	DeleteSale(context.Context, *DeleteSaleRequest) (*domain.DeletionResult, error)
	ListInventory(context.Context, *ListInventoryRequest) (*ListInventoryReply, error)
	Summary(context.Context, *SummaryRequest) (*domain.Summary, error)
}

type GRPCHandler struct {
	ledger *service.LedgerService
}

var _ LedgerServer = (*GRPCHandler)(nil)

func NewGRPCHandler(ledger *service.LedgerService) *GRPCHandler {
	return &GRPCHandler{ledger: ledger}
}

func (h *GRPCHandler) RecordSale(ctx context.Context, req *RecordSaleRequest) (*domain.SaleReceipt, error) {
	receipt, err := h.ledger.Submit(ctx, service.SaleRequest{
		RequestID:    req.RequestID,
		ItemName:     req.ItemName,
		Quantity:     req.Quantity,
		Price:        req.Price,
		UseListPrice: req.UseListPrice,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return receipt, nil
}

func (h *GRPCHandler) RecordSaleText(ctx context.Context, req *RecordSaleTextRequest) (*domain.SaleReceipt, error) {
	sale, err := service.ParseSaleText(req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	sale.RequestID = req.RequestID

	receipt, err := h.ledger.Submit(ctx, sale)
	if err != nil {
		return nil, toStatus(err)
	}
	return receipt, nil
}

func (h *GRPCHandler) DeleteSale(ctx context.Context, req *DeleteSaleRequest) (*domain.DeletionResult, error) {
	result, err := h.ledger.DeleteSale(ctx, req.Target)
	if err != nil {
		return nil, toStatus(err)
	}
	return &result, nil
}

func (h *GRPCHandler) ListInventory(ctx context.Context, _ *ListInventoryRequest) (*ListInventoryReply, error) {
	items, err := h.ledger.ListInventory(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListInventoryReply{Items: items}, nil
}

func (h *GRPCHandler) Summary(ctx context.Context, _ *SummaryRequest) (*domain.Summary, error) {
	summary, err := h.ledger.Summary(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &summary, nil
}

func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrConflict):
		code = codes.AlreadyExists
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, domain.ErrStoreUnavailable):
		code = codes.Unavailable
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// RegisterLedgerServer registers srv on s under laku.v1.Ledger.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RecordSale",
			Handler: unaryHandler("RecordSale", func(srv LedgerServer, ctx context.Context, req *RecordSaleRequest) (any, error) {
				return srv.RecordSale(ctx, req)
			}),
		},
		{
			MethodName: "RecordSaleText",
			Handler: unaryHandler("RecordSaleText", func(srv LedgerServer, ctx context.Context, req *RecordSaleTextRequest) (any, error) {
				return srv.RecordSaleText(ctx, req)
			}),
		},
		{
			MethodName: "DeleteSale",
			Handler: unaryHandler("DeleteSale", func(srv LedgerServer, ctx context.Context, req *DeleteSaleRequest) (any, error) {
				return srv.DeleteSale(ctx, req)
			}),
		},
		{
			MethodName: "ListInventory",
			Handler: unaryHandler("ListInventory", func(srv LedgerServer, ctx context.Context, req *ListInventoryRequest) (any, error) {
				return srv.ListInventory(ctx, req)
			}),
		},
		{
			MethodName: "Summary",
			Handler: unaryHandler("Summary", func(srv LedgerServer, ctx context.Context, req *SummaryRequest) (any, error) {
				return srv.Summary(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "laku/v1/ledger",
}

func unaryHandler[Req any](method string, call func(LedgerServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	fullMethod := "/" + ledgerServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerClient calls laku.v1.Ledger over a connection using the JSON codec.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) RecordSale(ctx context.Context, in *RecordSaleRequest, opts ...grpc.CallOption) (*domain.SaleReceipt, error) {
	out := new(domain.SaleReceipt)
	if err := c.invoke(ctx, "RecordSale", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) RecordSaleText(ctx context.Context, in *RecordSaleTextRequest, opts ...grpc.CallOption) (*domain.SaleReceipt, error) {
	out := new(domain.SaleReceipt)
	if err := c.invoke(ctx, "RecordSaleText", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) DeleteSale(ctx context.Context, in *DeleteSaleRequest, opts ...grpc.CallOption) (*domain.DeletionResult, error) {
	out := new(domain.DeletionResult)
	if err := c.invoke(ctx, "DeleteSale", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListInventory(ctx context.Context, in *ListInventoryRequest, opts ...grpc.CallOption) (*ListInventoryReply, error) {
	out := new(ListInventoryReply)
	if err := c.invoke(ctx, "ListInventory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Summary(ctx context.Context, in *SummaryRequest, opts ...grpc.CallOption) (*domain.Summary, error) {
	out := new(domain.Summary)
	if err := c.invoke(ctx, "Summary", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out, opts...)
}

// UnaryLogger logs every unary call with its status code and latency.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With(zap.String("component", "grpc"))
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unavailable {
			logger.Error("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
