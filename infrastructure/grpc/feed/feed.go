// Package feed declares the durable change feed service,
// orderchat.feed.v1.ChatFeed, as a server stream of chat events.
// Frames are JSON encoded through the codec registered below.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"order-chat/domain/event"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	ServiceName     = "orderchat.feed.v1.ChatFeed"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
	CodecName       = "json"
	// ReadyHeader is set in the response headers once the stream is live.
	ReadyHeader     = "x-feed-ready"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

type SubscribeRequest struct {
	ChatID string `json:"chat_id"`
}

type ChatFeedServer interface {
	Subscribe(req *SubscribeRequest, stream SubscribeServer) error
}

type SubscribeServer interface {
	Send(evt *event.Event) error
	grpc.ServerStream
}

type subscribeServer struct {
	grpc.ServerStream
}

func (s *subscribeServer) Send(evt *event.Event) error {
	return s.ServerStream.SendMsg(evt)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ChatFeedServer).Subscribe(req, &subscribeServer{ServerStream: stream})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatFeedServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "orderchat/feed/v1/feed.proto",
}

func RegisterChatFeedServer(s grpc.ServiceRegistrar, srv ChatFeedServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type SubscribeClient interface {
	Recv() (*event.Event, error)
	grpc.ClientStream
}

type subscribeClient struct {
	grpc.ClientStream
}

func (c *subscribeClient) Recv() (*event.Event, error) {
	evt := new(event.Event)
	if err := c.ClientStream.RecvMsg(evt); err != nil {
		return nil, err
	}
	return evt, nil
}

type ChatFeedClient struct {
	cc grpc.ClientConnInterface
}

func NewChatFeedClient(cc grpc.ClientConnInterface) *ChatFeedClient {
	return &ChatFeedClient{cc: cc}
}

// Subscribe opens the stream; events arrive until ctx is cancelled or the
// connection drops.
func (c *ChatFeedClient) Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (SubscribeClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{ClientStream: stream}
	// io.EOF means the server already ended the stream; Recv reports its status.
	if err = x.ClientStream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err = x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// AwaitReady blocks until the server reports the stream live. A stream the
// server ended before that returns its status error.
func AwaitReady(stream SubscribeClient) error {
	md, err := stream.Header()
	if err != nil {
		return err
	}
	if len(md.Get(ReadyHeader)) > 0 {
		return nil
	}
	if _, err = stream.Recv(); err != nil {
		return err
	}
	return errors.New("feed stream not ready")
}
