package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/willemschots/rentals/internal/auth"
	authdb "github.com/willemschots/rentals/internal/auth/db"
	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/krypto"
)

const helpText = `Usage: useradd [-superuser] [-name display_name] email

Creates a user in the database configured by DB_DRIVER, DB_FILENAME,
DB_ENCRYPTION_KEYS and DB_BLIND_INDEX_SALT. The password is read from
RENTALS_PASSWORD, or from the first line of stdin when that is not set.
The database needs to be migrated first, see dbmigrate.
`

// passwordEnv holds the password of the new user.
const passwordEnv = "RENTALS_PASSWORD"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("useradd", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, helpText)
		flags.PrintDefaults()
	}

	superuser := flags.Bool("superuser", false, "create a staff member with superuser rights")
	name := flags.String("name", "", "display name of the user, ignored with -superuser")

	err := flags.Parse(args)
	if err != nil {
		return 2
	}

	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}

	err = loadEnvFile()
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	cfg, err := configFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "invalid environment: %v\n", err)
		return 1
	}

	password, err := readPassword(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read password: %v\n", err)
		return 1
	}

	sqlDB, err := db.OpenSQLite(cfg.driver, cfg.file)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer sqlDB.Close()

	encryptor, err := krypto.NewEncryptor(cfg.encryptionKeys)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create encryptor: %v\n", err)
		return 1
	}

	svc, err := auth.NewService(authdb.New(sqlDB, encryptor, cfg.blindIndexSalt))
	if err != nil {
		fmt.Fprintf(stderr, "failed to create auth service: %v\n", err)
		return 1
	}

	var u auth.User
	if *superuser {
		u, err = svc.CreateSuperuser(ctx, flags.Arg(0), password)
	} else {
		u, err = svc.CreateUser(ctx, flags.Arg(0), password, auth.UserExtra{Name: *name})
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to create user: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "created user %d: %s (staff: %t, superuser: %t)\n", u.ID, u.Email, u.IsStaff, u.IsSuperuser)

	return 0
}

func readPassword(stdin io.Reader) (string, error) {
	if pwd, ok := os.LookupEnv(passwordEnv); ok {
		return pwd, nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

type config struct {
	driver         string
	file           string
	encryptionKeys []krypto.Key
	blindIndexSalt krypto.Key
}

func configFromEnv() (config, error) {
	c := config{
		driver: db.DriverCGO,
		file:   "rentals.db",
	}

	var errs []error

	if v, ok := os.LookupEnv("DB_DRIVER"); ok {
		if !db.IsDriver(v) {
			errs = append(errs, fmt.Errorf("invalid env variable DB_DRIVER: unknown driver %q", v))
		}
		c.driver = v
	}

	if v, ok := os.LookupEnv("DB_FILENAME"); ok {
		if v == "" {
			errs = append(errs, errors.New("invalid env variable DB_FILENAME: can't be empty"))
		}
		c.file = v
	}

	keys, err := krypto.ParseKeys(os.Getenv("DB_ENCRYPTION_KEYS"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid env variable DB_ENCRYPTION_KEYS: %w", err))
	}
	c.encryptionKeys = keys

	salt, err := krypto.ParseKey(os.Getenv("DB_BLIND_INDEX_SALT"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid env variable DB_BLIND_INDEX_SALT: %w", err))
	}
	c.blindIndexSalt = salt

	return c, errors.Join(errs...)
}

func loadEnvFile() error {
	file, explicit := os.LookupEnv("ENV_FILE")
	if !explicit {
		file = ".env"
	}

	err := godotenv.Load(file)
	if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return fmt.Errorf("failed to load env file %s: %w", file, err)
	}

	return nil
}
