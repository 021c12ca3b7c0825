package e2e

import (
	"bytes"
	relayclient "chat-relay/infrastructure/grpc/client"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// BaseSuite drives a relay started outside of the test process.
// Every test is skipped when RELAY_HTTP_ADDR or RELAY_GRPC_ADDR is missing.
type BaseSuite struct {
	suite.Suite
	Config Config
	http   *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HTTPAddr == "" || s.Config.GRPCAddr == "" {
		s.T().Skip("RELAY_HTTP_ADDR and RELAY_GRPC_ADDR are required for e2e tests")
	}
	s.http = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// WebsocketURL is the realtime endpoint of the relay.
func (s *BaseSuite) WebsocketURL() string {
	return fmt.Sprintf("ws://%s/ws", s.Config.HTTPAddr)
}

// Call sends a JSON request to the REST surface and decodes the JSON answer into out.
func (s *BaseSuite) Call(name, method, path string, body, out any) int {
	s.step(s.T(), name)

	var payload bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", s.Config.HTTPAddr, path), &payload)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.http.Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.T().Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// WithRelay provides a gRPC relay client within a contextual test step
func (s *BaseSuite) WithRelay(name, token string, fn func(ctx context.Context, client *relayclient.RelayClient)) {
	s.step(s.T(), name)

	client, err := relayclient.NewRelayClient(s.Config.GRPCAddr, token, grpc.WithUnaryInterceptor(s.logUnary))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GRPCAddr)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(ctx, client)
}

func (s *BaseSuite) logUnary(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

	// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, indent(req))
		if err != nil {
			fmt.Fprintln(&logBuilder, "ERROR:", err)
		} else {
			fmt.Fprintln(&logBuilder, "RESPONSE:")
			fmt.Fprintln(&logBuilder, indent(reply))
		}
	}
	s.T().Log(logBuilder.String())
	return err
}

func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
