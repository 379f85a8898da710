package ml

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/clientcredentials"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// modelServer answers Predict with the first column of each row plus one.
type modelServer struct {
	mu       sync.Mutex
	batches  []int
	features []string
}

func (s *modelServer) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if method != PredictMethod {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	rows := int(req.Fields["rows"].GetNumberValue())
	cols := int(req.Fields["columns"].GetNumberValue())
	values := req.Fields["values"].GetListValue().GetValues()

	s.mu.Lock()
	s.batches = append(s.batches, rows)
	s.features = nil
	for _, v := range req.Fields["features"].GetListValue().GetValues() {
		s.features = append(s.features, v.GetStringValue())
	}
	s.mu.Unlock()

	labels := make([]*structpb.Value, rows)
	for r := 0; r < rows; r++ {
		labels[r] = structpb.NewNumberValue(values[r*cols].GetNumberValue() + 1)
	}
	return stream.SendMsg(&structpb.Struct{Fields: map[string]*structpb.Value{
		"labels": structpb.NewListValue(&structpb.ListValue{Values: labels}),
	}})
}

func startModelServer(t *testing.T) (*modelServer, grpc.DialOption) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	model := &modelServer{}
	srv := grpc.NewServer(grpc.UnknownServiceHandler(model.handle))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return model, dialer
}

func TestRemotePredictorBatches(t *testing.T) {
	model, dialer := startModelServer(t)
	ctx := context.Background()

	p, err := DialRemote(ctx, "passthrough:///bufnet", RemoteOptions{
		FeatureNames: []string{"ndvi", "ndii"},
		BatchRows:    2,
		DialOptions:  []grpc.DialOption{dialer},
	})
	require.NoError(t, err)
	defer p.Close()

	labels, err := p.Predict(ctx, mat.NewDense(5, 2, []float64{0, 9, 1, 9, 2, 9, 3, 9, 4, 9}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, labels)
	assert.Equal(t, []int{2, 2, 1}, model.batches)
	assert.Equal(t, []string{"ndvi", "ndii"}, model.features)
	assert.Equal(t, 2, p.NumFeatures())
}

func TestRemoteAuthNeedsTLS(t *testing.T) {
	_, err := DialRemote(context.Background(), "localhost:1", RemoteOptions{
		Auth: &clientcredentials.Config{ClientID: "id", ClientSecret: "secret", TokenURL: "https://auth/token"},
	})
	assert.Error(t, err)
}
