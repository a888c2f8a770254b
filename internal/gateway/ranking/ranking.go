// Package ranking asks the external Tier Ranking Provider for the ordered
// candidate transporters of an order.
package ranking

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"transport-dispatch/internal/domain"
)

// RankMethod is the full gRPC method name of the ranking call.
const RankMethod = "/ranking.v1.RankingService/RankCandidates"

// Invoker performs unary gRPC calls. *grpc.ClientConn satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// GRPCGateway is a ranking gateway backed by gRPC.
type GRPCGateway struct {
	conn Invoker
}

// NewGRPCGateway creates a ranking gateway backed by gRPC.
func NewGRPCGateway(conn Invoker) *GRPCGateway {
	if conn == nil {
		return nil
	}
	return &GRPCGateway{conn: conn}
}

// Dial opens a plaintext client connection to the ranking provider.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("ranking gateway: dial %s: %w", addr, err)
	}
	return conn, nil
}

// Rank returns the candidates of an order in tier order.
func (g *GRPCGateway) Rank(ctx context.Context, orderID string) ([]domain.Candidate, error) {
	req, err := structpb.NewStruct(map[string]any{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("ranking gateway: build request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, RankMethod, req, resp); err != nil {
		return nil, fmt.Errorf("ranking gateway: RankCandidates: %w", err)
	}

	values := resp.GetFields()["candidates"].GetListValue().GetValues()
	out := make([]domain.Candidate, 0, len(values))
	for i, v := range values {
		c, err := mapCandidate(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("ranking gateway: candidate %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func mapCandidate(s *structpb.Struct) (domain.Candidate, error) {
	if s == nil {
		return domain.Candidate{}, fmt.Errorf("not an object")
	}
	fields := s.GetFields()
	id := strings.TrimSpace(fields["transporter_id"].GetStringValue())
	if id == "" {
		return domain.Candidate{}, fmt.Errorf("missing transporter_id")
	}

	var cost decimal.Decimal
	switch v := fields["proposed_cost"].GetKind().(type) {
	case *structpb.Value_NumberValue:
		cost = decimal.NewFromFloat(v.NumberValue)
	case *structpb.Value_StringValue:
		parsed, err := decimal.NewFromString(v.StringValue)
		if err != nil {
			return domain.Candidate{}, fmt.Errorf("proposed_cost: %w", err)
		}
		cost = parsed
	default:
		return domain.Candidate{}, fmt.Errorf("missing proposed_cost")
	}
	return domain.Candidate{TransporterID: id, ProposedCost: cost}, nil
}
