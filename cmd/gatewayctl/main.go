// gatewayctl provisions API clients out-of-band: the gateway itself has
// no client-management endpoints, so operators use this against the same
// database file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lockbridge/gateway/internal/gateway/domain"
	"github.com/lockbridge/gateway/internal/gateway/store"
	"github.com/lockbridge/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/lockbridge/gateway/pkg/cryptox"
	"github.com/lockbridge/gateway/pkg/idx"
)

func main() {
	dbFile := flag.String("db", envOrDefault("GATEWAY_DATABASE_FILE", "gateway.db"), "path to the gateway database file")
	pepperFile := flag.String("pepper", os.Getenv("GATEWAY_PEPPER_FILE"), "path to the secret-hash pepper file")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cryptox.SetPepperPath(*pepperFile)

	st, err := sqlite.NewStore("file:" + *dbFile)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer st.Close()

	if err := st.ApplyMigrations(); err != nil {
		fatalf("apply migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := flag.Args()
	switch args[0] {
	case "create-client":
		createClient(ctx, st, args[1:])
	case "list-clients":
		listClients(ctx, st)
	case "deactivate-client":
		setClientActive(ctx, st, args[1:], false)
	case "activate-client":
		setClientActive(ctx, st, args[1:], true)
	case "rotate-secret":
		rotateSecret(ctx, st, args[1:])
	case "sweep":
		sweep(ctx, st)
	default:
		usage()
		os.Exit(2)
	}
}

func createClient(ctx context.Context, st store.Store, args []string) {
	fs := flag.NewFlagSet("create-client", flag.ExitOnError)
	name := fs.String("name", "", "human-readable client name (required)")
	id := fs.String("id", "", "client id (generated when empty)")
	_ = fs.Parse(args)

	if *name == "" {
		fatalf("create-client: -name is required")
	}

	clientID := *id
	if clientID == "" {
		clientID = idx.New().String()
	}

	secret, err := cryptox.GenerateSecret()
	if err != nil {
		fatalf("generate secret: %v", err)
	}
	hash, err := cryptox.HashSecret(secret)
	if err != nil {
		fatalf("hash secret: %v", err)
	}

	err = st.Clients().CreateClient(ctx, domain.Client{
		ID:         clientID,
		Name:       *name,
		SecretHash: hash,
		Active:     true,
	})
	if err != nil {
		fatalf("create client: %v", err)
	}

	// The plaintext secret is shown exactly once; only its hash is stored.
	fmt.Printf("client_id:     %s\n", clientID)
	fmt.Printf("client_secret: %s\n", secret)
}

func listClients(ctx context.Context, st store.Store) {
	clients, err := st.Clients().ListClients(ctx)
	if err != nil {
		fatalf("list clients: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCREATED")
	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", c.ID, c.Name, c.Active, c.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func setClientActive(ctx context.Context, st store.Store, args []string, active bool) {
	if len(args) != 1 {
		fatalf("expected exactly one client id")
	}
	clientID := args[0]

	if err := st.Clients().SetClientActive(ctx, clientID, active); err != nil {
		fatalf("update client: %v", err)
	}

	if !active {
		// Deactivation also kills every outstanding session.
		if err := st.Sessions().RevokeAllClientSessions(ctx, clientID); err != nil {
			fatalf("revoke sessions: %v", err)
		}
	}

	fmt.Printf("client %s active=%t\n", clientID, active)
}

func rotateSecret(ctx context.Context, st store.Store, args []string) {
	if len(args) != 1 {
		fatalf("expected exactly one client id")
	}
	clientID := args[0]

	secret, err := cryptox.GenerateSecret()
	if err != nil {
		fatalf("generate secret: %v", err)
	}
	hash, err := cryptox.HashSecret(secret)
	if err != nil {
		fatalf("hash secret: %v", err)
	}

	if err := st.Clients().UpdateClientSecretHash(ctx, clientID, hash); err != nil {
		fatalf("update secret: %v", err)
	}
	if err := st.Sessions().RevokeAllClientSessions(ctx, clientID); err != nil {
		fatalf("revoke sessions: %v", err)
	}

	fmt.Printf("client_id:     %s\n", clientID)
	fmt.Printf("client_secret: %s\n", secret)
}

func sweep(ctx context.Context, st store.Store) {
	removed, err := st.Sessions().DeleteExpiredSessions(ctx)
	if err != nil {
		fatalf("sweep sessions: %v", err)
	}
	fmt.Printf("removed %d expired sessions\n", removed)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: gatewayctl [-db FILE] [-pepper FILE] COMMAND

commands:
  create-client -name NAME [-id ID]   provision a client, printing its secret once
  list-clients                        list all clients
  deactivate-client ID                deactivate a client and revoke its sessions
  activate-client ID                  reactivate a client
  rotate-secret ID                    replace a client's secret and revoke its sessions
  sweep                               delete expired sessions`)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
