package network

import (
	"context"

	"github.com/Luismorlan/powledger/model"
	"google.golang.org/grpc"
)

const ServiceName = "powledger.FullNodeService"

type TransactionRequest struct {
	Tx model.Transaction `json:"tx"`
}

type TransactionResponse struct{}

type BlockRequest struct {
	Block model.Block `json:"block"`
}

type BlockResponse struct{}

type GetChainRequest struct{}

type GetChainResponse struct {
	Chain  []model.Block `json:"chain"`
	Length int           `json:"length"`
}

type GetBalanceRequest struct {
	// Hex encoded public key of the participant.
	Participant string `json:"participant"`
}

type GetBalanceResponse struct {
	Balance float64 `json:"balance"`
}

type GetPendingTransactionsRequest struct{}

type GetPendingTransactionsResponse struct {
	Txs []model.Transaction `json:"transactions"`
}

// FullNodeServiceServer is the API a full node exposes to wallets and peers.
type FullNodeServiceServer interface {
	// Submit a transaction from a wallet. The node broadcasts it to its peers.
	SubmitTransaction(context.Context, *TransactionRequest) (*TransactionResponse, error)
	// A transaction relayed by a peer, never broadcast again.
	BroadcastTransaction(context.Context, *TransactionRequest) (*TransactionResponse, error)
	// A block mined by a peer.
	BroadcastBlock(context.Context, *BlockRequest) (*BlockResponse, error)
	GetChain(context.Context, *GetChainRequest) (*GetChainResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	GetPendingTransactions(context.Context, *GetPendingTransactionsRequest) (*GetPendingTransactionsResponse, error)
}

// UnimplementedFullNodeServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedFullNodeServiceServer struct{}

func (UnimplementedFullNodeServiceServer) SubmitTransaction(context.Context, *TransactionRequest) (*TransactionResponse, error) {
	return nil, StatusRejected.Error("method SubmitTransaction not implemented")
}

func (UnimplementedFullNodeServiceServer) BroadcastTransaction(context.Context, *TransactionRequest) (*TransactionResponse, error) {
	return nil, StatusRejected.Error("method BroadcastTransaction not implemented")
}

func (UnimplementedFullNodeServiceServer) BroadcastBlock(context.Context, *BlockRequest) (*BlockResponse, error) {
	return nil, StatusRejected.Error("method BroadcastBlock not implemented")
}

func (UnimplementedFullNodeServiceServer) GetChain(context.Context, *GetChainRequest) (*GetChainResponse, error) {
	return nil, StatusRejected.Error("method GetChain not implemented")
}

func (UnimplementedFullNodeServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, StatusRejected.Error("method GetBalance not implemented")
}

func (UnimplementedFullNodeServiceServer) GetPendingTransactions(context.Context, *GetPendingTransactionsRequest) (*GetPendingTransactionsResponse, error) {
	return nil, StatusRejected.Error("method GetPendingTransactions not implemented")
}

func RegisterFullNodeServiceServer(s grpc.ServiceRegistrar, srv FullNodeServiceServer) {
	s.RegisterService(&fullNodeServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unaryHandler builds the method handler for one RPC. newReq returns an
// empty request and call forwards it to the server implementation.
func unaryHandler(name string, newReq func() interface{}, call func(FullNodeServiceServer, context.Context, interface{}) (interface{}, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FullNodeServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(name),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FullNodeServiceServer), ctx, req)
		}
		return interceptor(ctx, in, info, handler)
	}
}

var fullNodeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FullNodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitTransaction",
			Handler: unaryHandler("SubmitTransaction",
				func() interface{} { return new(TransactionRequest) },
				func(s FullNodeServiceServer, ctx context.Context, req interface{}) (interface{}, error) {
					return s.SubmitTransaction(ctx, req.(*TransactionRequest))
				}),
		},
		{
			MethodName: "BroadcastTransaction",
			Handler: unaryHandler("BroadcastTransaction",
				func() interface{} { return new(TransactionRequest) },
				func(s FullNodeServiceServer, ctx context.Context, req interface{}) (interface{}, error) {
					return s.BroadcastTransaction(ctx, req.(*TransactionRequest))
				}),
		},
		{
			MethodName: "BroadcastBlock",
			Handler: unaryHandler("BroadcastBlock",
				func() interface{} { return new(BlockRequest) },
				func(s FullNodeServiceServer, ctx context.Context, req interface{}) (interface{}, error) {
					return s.BroadcastBlock(ctx, req.(*BlockRequest))
				}),
		},
		{
			MethodName: "GetChain",
			Handler: unaryHandler("GetChain",
				func() interface{} { return new(GetChainRequest) },
				func(s FullNodeServiceServer, ctx context.Context, req interface{}) (interface{}, error) {
					return s.GetChain(ctx, req.(*GetChainRequest))
				}),
		},
		{
			MethodName: "GetBalance",
			Handler: unaryHandler("GetBalance",
				func() interface{} { return new(GetBalanceRequest) },
				func(s FullNodeServiceServer, ctx context.Context, req interface{}) (interface{}, error) {
					return s.GetBalance(ctx, req.(*GetBalanceRequest))
				}),
		},
		{
			MethodName: "GetPendingTransactions",
			Handler: unaryHandler("GetPendingTransactions",
				func() interface{} { return new(GetPendingTransactionsRequest) },
				func(s FullNodeServiceServer, ctx context.Context, req interface{}) (interface{}, error) {
					return s.GetPendingTransactions(ctx, req.(*GetPendingTransactionsRequest))
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "powledger/network/service.go",
}

// FullNodeServiceClient is the client side of FullNodeServiceServer.
type FullNodeServiceClient interface {
	SubmitTransaction(ctx context.Context, in *TransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error)
	BroadcastTransaction(ctx context.Context, in *TransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error)
	BroadcastBlock(ctx context.Context, in *BlockRequest, opts ...grpc.CallOption) (*BlockResponse, error)
	GetChain(ctx context.Context, in *GetChainRequest, opts ...grpc.CallOption) (*GetChainResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error)
	GetPendingTransactions(ctx context.Context, in *GetPendingTransactionsRequest, opts ...grpc.CallOption) (*GetPendingTransactionsResponse, error)
}

type fullNodeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFullNodeServiceClient(cc grpc.ClientConnInterface) FullNodeServiceClient {
	return &fullNodeServiceClient{cc: cc}
}

func (c *fullNodeServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *fullNodeServiceClient) SubmitTransaction(ctx context.Context, in *TransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.invoke(ctx, "SubmitTransaction", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) BroadcastTransaction(ctx context.Context, in *TransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.invoke(ctx, "BroadcastTransaction", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) BroadcastBlock(ctx context.Context, in *BlockRequest, opts ...grpc.CallOption) (*BlockResponse, error) {
	out := new(BlockResponse)
	if err := c.invoke(ctx, "BroadcastBlock", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) GetChain(ctx context.Context, in *GetChainRequest, opts ...grpc.CallOption) (*GetChainResponse, error) {
	out := new(GetChainResponse)
	if err := c.invoke(ctx, "GetChain", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.invoke(ctx, "GetBalance", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) GetPendingTransactions(ctx context.Context, in *GetPendingTransactionsRequest, opts ...grpc.CallOption) (*GetPendingTransactionsResponse, error) {
	out := new(GetPendingTransactionsResponse)
	if err := c.invoke(ctx, "GetPendingTransactions", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
