package ml

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/forest-guardian/fmc-pipeline/internal/logging"
)

// PredictMethod is the full gRPC method name served by a remote FMC model.
const PredictMethod = "/fmc.v1.Classifier/Predict"

const (
	DefaultRemoteTimeout = 15 * time.Minute
	DefaultBatchRows     = 4096
	maxMessageSize       = 64 * 1024 * 1024
)

type RemoteOptions struct {
	TLS bool
	// Auth, when set, attaches a client-credentials bearer token to every call. It needs TLS.
	Auth         *clientcredentials.Config
	FeatureNames []string
	Timeout      time.Duration
	BatchRows    int
	DialOptions  []grpc.DialOption
	Logger       *zap.Logger
}

// RemotePredictor sends feature rows to a model server in batches. Requests and responses
// are protobuf Structs: the request carries "features", "rows" and the flattened "values",
// the response a "labels" list with one number per row.
type RemotePredictor struct {
	conn   *grpc.ClientConn
	opts   RemoteOptions
	logger *zap.Logger
}

func DialRemote(ctx context.Context, target string, opts RemoteOptions) (*RemotePredictor, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRemoteTimeout
	}
	if opts.BatchRows <= 0 {
		opts.BatchRows = DefaultBatchRows
	}

	dialOpts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
	}
	if opts.TLS {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if opts.Auth != nil {
		if !opts.TLS {
			return nil, fmt.Errorf("model credentials require a grpcs:// model path")
		}
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(oauth.TokenSource{TokenSource: opts.Auth.TokenSource(ctx)}))
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}
	return &RemotePredictor{
		conn:   conn,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("model"),
	}, nil
}

func (p *RemotePredictor) NumFeatures() int {
	return len(p.opts.FeatureNames)
}

func (p *RemotePredictor) Close() error {
	return p.conn.Close()
}

func (p *RemotePredictor) Predict(ctx context.Context, features *mat.Dense) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	rows, cols := features.Dims()
	labels := make([]float64, 0, rows)
	for start := 0; start < rows; start += p.opts.BatchRows {
		end := min(start+p.opts.BatchRows, rows)
		batch, err := p.predictBatch(ctx, features, start, end, cols)
		if err != nil {
			return nil, err
		}
		labels = append(labels, batch...)
	}
	p.logger.Debug("remote prediction done", zap.Int("rows", rows))
	return labels, nil
}

func (p *RemotePredictor) predictBatch(ctx context.Context, features *mat.Dense, start, end, cols int) ([]float64, error) {
	values := make([]*structpb.Value, 0, (end-start)*cols)
	for r := start; r < end; r++ {
		for _, v := range features.RawRowView(r) {
			values = append(values, structpb.NewNumberValue(v))
		}
	}
	names := make([]*structpb.Value, len(p.opts.FeatureNames))
	for i, name := range p.opts.FeatureNames {
		names[i] = structpb.NewStringValue(name)
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"features": structpb.NewListValue(&structpb.ListValue{Values: names}),
		"rows":     structpb.NewNumberValue(float64(end - start)),
		"columns":  structpb.NewNumberValue(float64(cols)),
		"values":   structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return nil, fmt.Errorf("error calling %s: %w", PredictMethod, err)
	}

	list := resp.GetFields()["labels"].GetListValue().GetValues()
	if len(list) != end-start {
		return nil, shapeError("model server returned %d labels for %d rows", len(list), end-start)
	}
	labels := make([]float64, len(list))
	for i, v := range list {
		labels[i] = v.GetNumberValue()
	}
	return labels, nil
}
