package giftledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName                                = "giftledger.v1.GiftLedger"
	GiftLedger_PurchaseGift_FullMethodName     = "/giftledger.v1.GiftLedger/PurchaseGift"
	GiftLedger_GetBalance_FullMethodName       = "/giftledger.v1.GiftLedger/GetBalance"
	GiftLedger_TopUp_FullMethodName            = "/giftledger.v1.GiftLedger/TopUp"
	GiftLedger_ListGifts_FullMethodName        = "/giftledger.v1.GiftLedger/ListGifts"
	GiftLedger_ListTransactions_FullMethodName = "/giftledger.v1.GiftLedger/ListTransactions"
)

// GiftLedgerServer is the server API for the GiftLedger service.
type GiftLedgerServer interface {
	PurchaseGift(context.Context, *PurchaseGiftRequest) (*PurchaseGiftResponse, error)
	GetBalance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	TopUp(context.Context, *TopUpRequest) (*TopUpResponse, error)
	ListGifts(context.Context, *ListGiftsRequest) (*ListGiftsResponse, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error)
}

// UnimplementedGiftLedgerServer can be embedded to keep servers forward compatible.
type UnimplementedGiftLedgerServer struct{}

func (UnimplementedGiftLedgerServer) PurchaseGift(context.Context, *PurchaseGiftRequest) (*PurchaseGiftResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PurchaseGift not implemented")
}

func (UnimplementedGiftLedgerServer) GetBalance(context.Context, *BalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedGiftLedgerServer) TopUp(context.Context, *TopUpRequest) (*TopUpResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method TopUp not implemented")
}

func (UnimplementedGiftLedgerServer) ListGifts(context.Context, *ListGiftsRequest) (*ListGiftsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListGifts not implemented")
}

func (UnimplementedGiftLedgerServer) ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTransactions not implemented")
}

// RegisterGiftLedgerServer attaches the implementation to a gRPC server.
func RegisterGiftLedgerServer(registrar grpc.ServiceRegistrar, server GiftLedgerServer) {
	registrar.RegisterService(&GiftLedger_ServiceDesc, server)
}

func purchaseGiftHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(PurchaseGiftRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(GiftLedgerServer).PurchaseGift(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: server, FullMethod: GiftLedger_PurchaseGift_FullMethodName}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(GiftLedgerServer).PurchaseGift(ctx, request.(*PurchaseGiftRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func getBalanceHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(BalanceRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(GiftLedgerServer).GetBalance(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: server, FullMethod: GiftLedger_GetBalance_FullMethodName}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(GiftLedgerServer).GetBalance(ctx, request.(*BalanceRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func topUpHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(TopUpRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(GiftLedgerServer).TopUp(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: server, FullMethod: GiftLedger_TopUp_FullMethodName}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(GiftLedgerServer).TopUp(ctx, request.(*TopUpRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func listGiftsHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(ListGiftsRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(GiftLedgerServer).ListGifts(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: server, FullMethod: GiftLedger_ListGifts_FullMethodName}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(GiftLedgerServer).ListGifts(ctx, request.(*ListGiftsRequest))
	}
	return interceptor(ctx, request, info, handler)
}

func listTransactionsHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(ListTransactionsRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(GiftLedgerServer).ListTransactions(ctx, request)
	}
	info := &grpc.UnaryServerInfo{Server: server, FullMethod: GiftLedger_ListTransactions_FullMethodName}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(GiftLedgerServer).ListTransactions(ctx, request.(*ListTransactionsRequest))
	}
	return interceptor(ctx, request, info, handler)
}

// GiftLedger_ServiceDesc describes the GiftLedger service for grpc.Server.
var GiftLedger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GiftLedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PurchaseGift", Handler: purchaseGiftHandler},
		{MethodName: "GetBalance", Handler: getBalanceHandler},
		{MethodName: "TopUp", Handler: topUpHandler},
		{MethodName: "ListGifts", Handler: listGiftsHandler},
		{MethodName: "ListTransactions", Handler: listTransactionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/giftledger/v1",
}

// GiftLedgerClient is the client API for the GiftLedger service.
type GiftLedgerClient interface {
	PurchaseGift(ctx context.Context, in *PurchaseGiftRequest, opts ...grpc.CallOption) (*PurchaseGiftResponse, error)
	GetBalance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	TopUp(ctx context.Context, in *TopUpRequest, opts ...grpc.CallOption) (*TopUpResponse, error)
	ListGifts(ctx context.Context, in *ListGiftsRequest, opts ...grpc.CallOption) (*ListGiftsResponse, error)
	ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error)
}

type giftLedgerClient struct {
	connection grpc.ClientConnInterface
}

// NewGiftLedgerClient returns a client that always negotiates the JSON codec.
func NewGiftLedgerClient(connection grpc.ClientConnInterface) GiftLedgerClient {
	return &giftLedgerClient{connection: connection}
}

func (client *giftLedgerClient) invoke(ctx context.Context, method string, in any, out any, opts []grpc.CallOption) error {
	callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return client.connection.Invoke(ctx, method, in, out, callOptions...)
}

func (client *giftLedgerClient) PurchaseGift(ctx context.Context, in *PurchaseGiftRequest, opts ...grpc.CallOption) (*PurchaseGiftResponse, error) {
	out := new(PurchaseGiftResponse)
	if err := client.invoke(ctx, GiftLedger_PurchaseGift_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *giftLedgerClient) GetBalance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := client.invoke(ctx, GiftLedger_GetBalance_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *giftLedgerClient) TopUp(ctx context.Context, in *TopUpRequest, opts ...grpc.CallOption) (*TopUpResponse, error) {
	out := new(TopUpResponse)
	if err := client.invoke(ctx, GiftLedger_TopUp_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *giftLedgerClient) ListGifts(ctx context.Context, in *ListGiftsRequest, opts ...grpc.CallOption) (*ListGiftsResponse, error) {
	out := new(ListGiftsResponse)
	if err := client.invoke(ctx, GiftLedger_ListGifts_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *giftLedgerClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	out := new(ListTransactionsResponse)
	if err := client.invoke(ctx, GiftLedger_ListTransactions_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
