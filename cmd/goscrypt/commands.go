package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	goScrypt "github.com/MrEthical07/goScrypt"
	"github.com/MrEthical07/goScrypt/internal/httpapi"
	"github.com/alicebob/miniredis/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// session holds what the commands share for one invocation.
type session struct {
	stdin   io.Reader
	environ map[string]string

	env     envConfig
	logger  *zap.Logger
	engine  *goScrypt.Engine
	cleanup []func()
}

func (s *session) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}

// setup loads configuration and builds the engine. It runs before every command.
func (s *session) setup(c *cli.Context) error {
	var err error
	if s.env, err = loadEnv(s.environ); err != nil {
		return err
	}
	if s.logger, err = newLogger(s.env.LogLevel); err != nil {
		return err
	}

	cfg, err := s.env.engineConfig()
	if err != nil {
		return err
	}

	b := goScrypt.New().WithConfig(cfg).WithLogger(s.logger)
	if s.env.Audit {
		b = b.WithAuditSink(goScrypt.NewLoggerSink(s.logger))
	}
	if cfg.VerifyThrottle.Enabled {
		client, err := s.redisClient()
		if err != nil {
			return err
		}
		b = b.WithRedis(client)
	}

	if s.engine, err = b.Build(); err != nil {
		return err
	}
	s.cleanup = append(s.cleanup, s.engine.Close)
	return nil
}

// redisClient connects to GOSCRYPT_REDIS_ADDR or, when unset, an in-process
// miniredis whose state lives only as long as the command.
func (s *session) redisClient() (redis.UniversalClient, error) {
	addr := s.env.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		s.cleanup = append(s.cleanup, mr.Close)
		addr = mr.Addr()
		s.logger.Warn("GOSCRYPT_REDIS_ADDR not set; verify throttle state is in memory", zap.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	s.cleanup = append(s.cleanup, func() { _ = client.Close() })
	return client, nil
}

var costFlags = []cli.Flag{
	&cli.UintFlag{Name: "ln", Usage: "cost exponent, N = 2^ln"},
	&cli.Uint64Flag{Name: "n", Usage: "cost N, rounded down to a power of two"},
	&cli.UintFlag{Name: "r", Usage: "block size"},
	&cli.UintFlag{Name: "p", Usage: "parallelism"},
}

var passwordFlags = []cli.Flag{
	&cli.StringFlag{Name: "password", Usage: "password to hash"},
	&cli.BoolFlag{Name: "stdin", Usage: "read the password from the first line of stdin"},
}

func hashFlags() []cli.Flag {
	flags := append([]cli.Flag{}, passwordFlags...)
	flags = append(flags, costFlags...)
	return append(flags,
		&cli.StringFlag{Name: "salt", Usage: "salt text"},
		&cli.StringFlag{Name: "salt-hex", Usage: "salt bytes as hex"},
		&cli.UintFlag{Name: "len", Usage: "derived key length in bytes"},
	)
}

func (s *session) readPassword(c *cli.Context) ([]byte, error) {
	if c.Bool("stdin") {
		if c.IsSet("password") {
			return nil, errors.New("--password and --stdin are mutually exclusive")
		}
		line, err := bufio.NewReader(s.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}
	if !c.IsSet("password") {
		return nil, errors.New("one of --password or --stdin is required")
	}
	return []byte(c.String("password")), nil
}

// hashOptions maps only the flags present on the command line, so unset
// flags fall back to the configured defaults.
func hashOptions(c *cli.Context) ([]goScrypt.HashOption, error) {
	var opts []goScrypt.HashOption

	if c.IsSet("ln") {
		ln := c.Uint("ln")
		if ln > math.MaxUint8 {
			return nil, fmt.Errorf("%w: ln %d out of range", goScrypt.ErrInvalidParameters, ln)
		}
		opts = append(opts, goScrypt.WithLogN(uint8(ln)))
	}
	if c.IsSet("n") {
		opts = append(opts, goScrypt.WithN(c.Uint64("n")))
	}
	if c.IsSet("r") {
		r, err := uint32Flag(c, "r", goScrypt.ErrInvalidParameters)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goScrypt.WithBlockSize(r))
	}
	if c.IsSet("p") {
		p, err := uint32Flag(c, "p", goScrypt.ErrInvalidParameters)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goScrypt.WithParallelism(p))
	}
	if c.IsSet("len") {
		n, err := uint32Flag(c, "len", goScrypt.ErrHashComputation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goScrypt.WithOutputLength(n))
	}

	switch {
	case c.IsSet("salt") && c.IsSet("salt-hex"):
		return nil, errors.New("--salt and --salt-hex are mutually exclusive")
	case c.IsSet("salt"):
		opts = append(opts, goScrypt.WithSaltString(c.String("salt")))
	case c.IsSet("salt-hex"):
		salt, err := hex.DecodeString(c.String("salt-hex"))
		if err != nil {
			return nil, fmt.Errorf("%w: --salt-hex: %v", goScrypt.ErrSaltEncoding, err)
		}
		opts = append(opts, goScrypt.WithSalt(salt))
	}

	return opts, nil
}

// uint32Flag reads a uint flag that the engine takes as uint32.
func uint32Flag(c *cli.Context, name string, sentinel error) (uint32, error) {
	v := c.Uint(name)
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s %d out of range", sentinel, name, v)
	}
	return uint32(v), nil
}

func (s *session) hashCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash",
		Usage: "derive a raw key and print it as hex",
		Flags: hashFlags(),
		Action: func(c *cli.Context) error {
			pwd, err := s.readPassword(c)
			if err != nil {
				return err
			}
			opts, err := hashOptions(c)
			if err != nil {
				return err
			}

			h, err := s.engine.DeriveKey(c.Context, pwd, opts...)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, h.Hex)
			if h.SaltGenerated {
				fmt.Fprintf(c.App.ErrWriter, "salt (hex): %s\n", hex.EncodeToString(h.Salt))
			}
			return nil
		},
	}
}

func (s *session) encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "hash a password into a $scrypt$ PHC string",
		Flags: hashFlags(),
		Action: func(c *cli.Context) error {
			pwd, err := s.readPassword(c)
			if err != nil {
				return err
			}
			opts, err := hashOptions(c)
			if err != nil {
				return err
			}

			encoded, err := s.engine.HashEncoded(c.Context, pwd, opts...)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, encoded)
			return nil
		},
	}
}

func (s *session) verifyCommand() *cli.Command {
	flags := append([]cli.Flag{}, passwordFlags...)
	flags = append(flags,
		&cli.StringFlag{Name: "hash", Usage: "PHC string to verify against", Required: true},
		&cli.StringFlag{Name: "subject", Usage: "account key for throttled verification"},
	)

	return &cli.Command{
		Name:  "verify",
		Usage: "check a password against a PHC string; exits 1 on mismatch",
		Flags: flags,
		Action: func(c *cli.Context) error {
			pwd, err := s.readPassword(c)
			if err != nil {
				return err
			}

			var ok bool
			if subject := c.String("subject"); subject != "" {
				ok, err = s.engine.VerifyFor(c.Context, subject, pwd, c.String("hash"))
			} else {
				ok, err = s.engine.Verify(c.Context, pwd, c.String("hash"))
			}
			if err != nil {
				return err
			}

			if !ok {
				color.New(color.FgRed, color.Bold).Fprintln(c.App.Writer, "MISMATCH")
				return cli.Exit("", 1)
			}
			color.New(color.FgGreen, color.Bold).Fprintln(c.App.Writer, "OK")
			return nil
		},
	}
}

func (s *session) paramsCommand() *cli.Command {
	return &cli.Command{
		Name:  "params",
		Usage: "show N and the memory a derivation needs",
		Flags: costFlags,
		Action: func(c *cli.Context) error {
			opts, err := hashOptions(c)
			if err != nil {
				return err
			}

			p, err := s.engine.ResolveParams(opts...)
			if err != nil {
				return err
			}

			mem := p.MemoryCost()
			fmt.Fprintf(c.App.Writer, "%s N=%d\n", p, p.N())
			fmt.Fprintf(c.App.Writer, "memory: %s (%d bytes)\n", humanize.IBytes(mem), mem)
			return nil
		},
	}
}

func (s *session) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "listen address", EnvVars: []string{"GOSCRYPT_ADDR"}},
		},
		Action: func(c *cli.Context) error {
			srv := &http.Server{
				Addr:              c.String("addr"),
				Handler:           httpapi.New(s.engine, s.logger).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				s.logger.Info("listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-c.Context.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
