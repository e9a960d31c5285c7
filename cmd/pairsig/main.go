// Command pairsig runs one peer of the two-party Schnorr signer, or both
// peers in-process with -demo.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pairsig/pairsig-go/internal/peerconfig"
	"github.com/pairsig/pairsig-go/pkg/pairsig"
	"github.com/pairsig/pairsig-go/pkg/pairsig/logging"
	"github.com/pairsig/pairsig-go/pkg/pairsig/mocknet"
	"github.com/pairsig/pairsig-go/pkg/pairsig/schnorr2p"
	"github.com/pairsig/pairsig-go/pkg/pairsig/tlsnet"
	"github.com/pairsig/pairsig-go/pkg/pairsig/wsnet"
)

type messageList []string

func (m *messageList) String() string { return strings.Join(*m, ",") }

func (m *messageList) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "", "peer configuration JSON file")
		demo       = flag.Bool("demo", false, "run both peers in-process")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error (overrides the config file)")
		version    = flag.Bool("version", false, "print version and exit")
		messages   messageList
	)
	flag.Var(&messages, "message", "message to sign (repeatable)")
	flag.Parse()

	if *version {
		fmt.Printf("pairsig %s (%s)\n", pairsig.Version, pairsig.ProtocolVersion)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *demo {
		if len(messages) == 0 {
			messages = messageList{"example message"}
		}
		logger := newLogger(*logLevel)
		if err := runDemo(ctx, os.Stdout, logger, messages); err != nil {
			log.Fatalf("demo: %v", err)
		}
		return
	}

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := peerconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := newLogger(level).With("role", cfg.PeerRole().String())

	proto, err := cfg.Protocol(logger)
	if err != nil {
		log.Fatalf("protocol config: %v", err)
	}
	party, err := schnorr2p.NewParty(cfg.PeerRole(), proto)
	if err != nil {
		log.Fatalf("create party: %v", err)
	}
	defer party.Close()

	if cfg.PeerRole() == pairsig.RoleResponder {
		err = serve(ctx, cfg, party, logger)
	} else {
		err = sign(ctx, os.Stdout, cfg, party, messages)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s: %v", cfg.PeerRole(), err)
	}
}

func newLogger(level string) logging.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(level)})
	return logging.New(slog.New(handler))
}

// serve answers initiators until ctx is cancelled.
func serve(ctx context.Context, cfg *peerconfig.PeerConfig, party *schnorr2p.Party, logger logging.Logger) error {
	responder, err := schnorr2p.NewResponder(party)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case peerconfig.TransportWebSocket:
		tlsCfg, err := cfg.TLSConfig()
		if err != nil {
			return err
		}
		srv := wsnet.NewServer(func(ctx context.Context, c *wsnet.Conn) error {
			return responder.Serve(ctx, c)
		}, logger)
		err = srv.ListenAndServe(ctx, cfg.Listen, tlsCfg)
		if ctx.Err() != nil {
			return nil
		}
		return err

	default:
		tcfg, err := cfg.TLSNet()
		if err != nil {
			return err
		}
		ln, err := tlsnet.Listen(tcfg)
		if err != nil {
			return err
		}
		defer ln.Close()
		logger.Info(ctx, "pairsig: listening", "addr", ln.Addr().String(), "transport", cfg.Transport)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for {
				t, err := ln.Accept(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					logger.Warn(gctx, "pairsig: accept failed", "error", err)
					continue
				}
				g.Go(func() error {
					defer t.Close()
					if err := responder.Serve(gctx, t); err != nil {
						logger.Warn(gctx, "pairsig: connection failed", "kind", pairsig.Kind(err), "error", err)
					}
					return nil
				})
			}
		})
		return g.Wait()
	}
}

// sign connects to the responder and signs every message in order.
func sign(ctx context.Context, w io.Writer, cfg *peerconfig.PeerConfig, party *schnorr2p.Party, messages []string) error {
	if len(messages) == 0 {
		return errors.New("no -message given")
	}

	var t pairsig.Transport
	switch cfg.Transport {
	case peerconfig.TransportWebSocket:
		tlsCfg, err := cfg.TLSConfig()
		if err != nil {
			return err
		}
		c, err := wsnet.Dial(ctx, cfg.Peer, tlsCfg)
		if err != nil {
			return err
		}
		t = c
	default:
		tcfg, err := cfg.TLSNet()
		if err != nil {
			return err
		}
		c, err := tlsnet.Dial(ctx, tcfg)
		if err != nil {
			return err
		}
		t = c
	}

	in, err := schnorr2p.NewInitiator(party, t)
	if err != nil {
		return err
	}
	defer in.Close()
	return signAll(ctx, w, in, messages)
}

func signAll(ctx context.Context, w io.Writer, in *schnorr2p.Initiator, messages []string) error {
	kx, err := in.Handshake(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "aggregated key: %s\n", hex.EncodeToString(kx.AggregatedKey))

	for _, m := range messages {
		res, err := in.Sign(ctx, []byte(m))
		if err != nil {
			return fmt.Errorf("sign %q: %w", m, err)
		}
		fmt.Fprintf(w, "message: %s\n", m)
		fmt.Fprintf(w, "  session: %s\n", res.Session)
		fmt.Fprintf(w, "  r: %s\n", hex.EncodeToString(res.Signature.R))
		fmt.Fprintf(w, "  s: %s\n", hex.EncodeToString(res.Signature.S))
		fmt.Fprintf(w, "  valid: %t\n", res.Valid)
	}
	return nil
}

// runDemo runs both peers over an in-memory pipe.
func runDemo(ctx context.Context, w io.Writer, logger logging.Logger, messages []string) error {
	cfg := pairsig.DefaultConfig()
	cfg.Logger = logger

	pa, err := schnorr2p.NewParty(pairsig.RoleInitiator, cfg)
	if err != nil {
		return err
	}
	defer pa.Close()
	pb, err := schnorr2p.NewParty(pairsig.RoleResponder, cfg)
	if err != nil {
		return err
	}
	defer pb.Close()

	responder, err := schnorr2p.NewResponder(pb)
	if err != nil {
		return err
	}
	ta, tb := mocknet.Pipe()
	in, err := schnorr2p.NewInitiator(pa, ta)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return responder.Serve(gctx, tb)
	})
	g.Go(func() error {
		defer in.Close()
		return signAll(gctx, w, in, messages)
	})
	return g.Wait()
}
