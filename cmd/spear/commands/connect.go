package commands

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkrutzer/spear"
	"github.com/hkrutzer/spear/internal/wirecodec"
	"github.com/hkrutzer/spear/transport"
)

// dialFlags reads the persistent --addr/--tls/--token flags shared by
// every subcommand that opens a connection.
func dialFlags(cmd *cobra.Command) (addr string, useTLS bool, token string, err error) {
	addr, err = cmd.Flags().GetString("addr")
	if err != nil {
		return "", false, "", err
	}
	useTLS, err = cmd.Flags().GetBool("tls")
	if err != nil {
		return "", false, "", err
	}
	token, err = cmd.Flags().GetString("token")
	if err != nil {
		return "", false, "", err
	}
	return addr, useTLS, token, nil
}

// connect opens a spear.Client against --addr using the built-in
// wirecodec default Codec; a production caller would instead supply a
// Codec built from their own generated EventStore protobuf stubs.
func connect(cmd *cobra.Command) (*spear.Client, error) {
	addr, useTLS, token, err := dialFlags(cmd)
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	rawDial := func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: 10 * time.Second}
		if useTLS {
			return tls.DialWithDialer(&d, "tcp", addr, &tls.Config{NextProtos: []string{"h2"}})
		}
		return d.DialContext(ctx, "tcp", addr)
	}
	dial := transport.NewBreakerDialer(addr, rawDial).Dial

	return spear.Connect(cmd.Context(), dial, spear.Options{
		Scheme:            scheme,
		Authority:         addr,
		Codec:             wirecodec.New(),
		Authorization:     token,
		KeepaliveInterval: 30 * time.Second,
		Logger:            zap.NewNop(),
	})
}
