package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChainWrapsOutsideIn(t *testing.T) {
	var trace []string

	logging := func(label string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				trace = append(trace, label+">")
				resp, err := next(ctx, req)
				trace = append(trace, "<"+label)
				return resp, err
			}
		}
	}

	listAnnotations := func(_ context.Context, _ any) (any, error) {
		trace = append(trace, "list")
		return []string{"hl_1"}, nil
	}

	chained := Chain(logging("auth"), logging("trace"))(listAnnotations)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ids, ok := resp.([]string)
	if !ok || len(ids) != 1 || ids[0] != "hl_1" {
		t.Fatalf("response: got %v", resp)
	}

	want := []string{"auth>", "trace>", "list", "<trace", "<auth"}
	if len(trace) != len(want) {
		t.Fatalf("trace length: got %d, want %d", len(trace), len(want))
	}
	for i, v := range want {
		if trace[i] != v {
			t.Fatalf("trace[%d]: got %q, want %q", i, trace[i], v)
		}
	}
}

func TestChainPropagatesEndpointError(t *testing.T) {
	errNoSession := errors.New("no session for document")
	failing := func(_ context.Context, _ any) (any, error) {
		return nil, errNoSession
	}

	passthrough := func(next Endpoint) Endpoint { return next }

	if _, err := Chain(passthrough)(failing)(context.Background(), nil); !errors.Is(err, errNoSession) {
		t.Fatalf("error: got %v, want %v", err, errNoSession)
	}
}

func TestTransportDefaultsToHTTP(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q, want http", v)
	}
	ctx := WithTransport(context.Background(), "mcp")
	if v := GetTransport(ctx); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

func TestRequestAndSessionIDs(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_abc")
	ctx = WithSessionID(ctx, "quic_x1")
	if v := GetRequestID(ctx); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
	if v := GetSessionID(ctx); v != "quic_x1" {
		t.Fatalf("session_id: got %q", v)
	}
}

func TestDocURL(t *testing.T) {
	ctx := WithDocURL(context.Background(), "https://example.com/a.pdf")
	if v := GetDocURL(ctx); v != "https://example.com/a.pdf" {
		t.Fatalf("doc url: got %q", v)
	}
}

func TestUnsetKeysAreEmpty(t *testing.T) {
	ctx := context.Background()
	if v := GetSessionID(ctx); v != "" {
		t.Fatalf("session_id default: got %q", v)
	}
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	if v := GetDocURL(ctx); v != "" {
		t.Fatalf("doc url default: got %q", v)
	}
}
