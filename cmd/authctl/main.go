// authctl is the operator tool for the account core: it hashes passwords
// for manual provisioning, prints the effective permission matrix and purges
// expired 2FA codes and reset tokens.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/cache"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/database"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/log"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
)

const usage = `Usage: authctl <command> [flags]

Commands:
  hash-password   read a password from stdin and print its digest
  roles           print the effective permission matrix
  purge           clear expired 2FA codes and reset tokens
`

var errUsage = errors.New("usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so command output stays pipeable.
	logger := log.New(cfg.Environment, cfg.Logging.Level).Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := run(context.Background(), cfg, logger, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "hash-password":
		return hashPassword(cfg, args[1:], stdin, stdout)
	case "roles":
		return printRoles(cfg, logger, args[1:], stdout)
	case "purge":
		return purge(ctx, cfg, logger, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func hashPassword(cfg *config.AppConfig, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}

	a := cfg.Security.Argon2
	hasher := security.NewPasswordHasher(security.Argon2Params{
		Time:    a.Time,
		Memory:  a.MemoryKiB,
		Threads: a.Threads,
		KeyLen:  a.KeyLength,
		SaltLen: a.SaltLength,
	}, cfg.Security.MaxPasswordBytes)

	digest, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, digest)
	return err
}

type rolesOutput struct {
	Matrix          map[string]map[string]bool `json:"matrix" yaml:"matrix"`
	AllowlistSource string                     `json:"allowlist_source" yaml:"allowlist_source"`
	Administrators  int                        `json:"administrators" yaml:"administrators"`
}

func printRoles(cfg *config.AppConfig, logger zerolog.Logger, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("roles", pflag.ContinueOnError)
	format := flags.StringP("format", "o", "json", "output format: json or yaml")
	rolesFile := flags.String("roles-file", cfg.Access.RolesFile, "permission override file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	matrix, _, err := access.LoadMatrix(*rolesFile, logger)
	if err != nil {
		return err
	}
	admins := access.LoadAllowlist(cfg.Access.AdminFiles, logger)

	out := rolesOutput{
		Matrix:          make(map[string]map[string]bool, len(matrix)),
		AllowlistSource: admins.Source(),
		Administrators:  admins.Len(),
	}
	for accountType, set := range matrix {
		out.Matrix[string(accountType)] = set.Map()
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		defer enc.Close()
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func purge(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("purge", pflag.ContinueOnError)
	enqueue := flags.Bool("enqueue", false, "hand the purge to the worker instead of running it here")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if *enqueue {
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr is required with --enqueue")
		}
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		id, err := queue.Enqueue(ctx, client, cfg.Queue.Stream, queue.Task{Type: queue.TaskPurge})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "purge enqueued as %s\n", id)
		return err
	}

	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := repository.NewAccountRepository(pool).PurgeExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	logger.Info().Int64("accounts", n).Msg("expired secrets purged")
	_, err = fmt.Fprintf(stdout, "%d accounts purged\n", n)
	return err
}
