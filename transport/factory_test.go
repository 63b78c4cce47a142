package transport

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/credentials/insecure"

	"github.com/geysersdk/client/config"
)

func TestTransportCredentialsPlaintext(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://127.0.0.1:10000"}
	creds, err := transportCredentials(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Info().SecurityProtocol != insecure.NewCredentials().Info().SecurityProtocol {
		t.Fatalf("expected insecure credentials for grpc:// scheme")
	}
}

func TestTransportCredentialsTLS(t *testing.T) {
	cfg := &config.Config{Endpoint: "https://geyser.example.com:443"}
	creds, err := transportCredentials(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Info().SecurityProtocol != "tls" {
		t.Fatalf("got %q, want tls", creds.Info().SecurityProtocol)
	}
}

func TestCompressorNameRejectsNone(t *testing.T) {
	if _, err := compressorName(config.CompressionNone); err == nil {
		t.Fatal("expected error for none")
	}
}

func TestCompressorNameKnown(t *testing.T) {
	cases := map[config.Compression]string{
		config.CompressionGzip: "gzip",
		config.CompressionZstd: zstdCompressorName,
	}
	for in, want := range cases {
		got, err := compressorName(in)
		if err != nil {
			t.Fatalf("compressorName(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("compressorName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDialOptionsRejectsNoneAcceptCompression(t *testing.T) {
	cfg := &config.Config{Endpoint: "https://geyser.example.com:443", Channel: config.ChannelOptions{
		AcceptCompression: []config.Compression{config.CompressionNone},
	}}
	if _, err := dialOptions(cfg); err == nil {
		t.Fatal("expected error for unsupported accept_compression entry")
	}
}

func TestDialOptionsDefaults(t *testing.T) {
	cfg := &config.Config{Endpoint: "https://geyser.example.com:443"}
	opts, err := dialOptions(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("expected non-empty dial options")
	}
}

// TestDialAbortsOnContextTimeout asserts that Dial honors a bounded ctx
// against an address that never becomes reachable, instead of blocking
// forever — grpc.NewClient itself never consults ctx, so this exercises the
// Connect/GetState/WaitForStateChange loop added to Dial for that reason.
func TestDialAbortsOnContextTimeout(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://10.255.255.1:1"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Dial(ctx, cfg)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error dialing an unreachable address")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("Dial took %s, want it to abort promptly on ctx timeout", elapsed)
	}
}
