// Command tokengen mints a bearer token for local development, standing in
// for the identity provider that issues them in production.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

func main() {
	var (
		secret = flag.String("s", "secretKey", "JWT secret key shared with the server")
		id     = flag.String("id", "", "principal id")
		email  = flag.String("email", "", "principal email")
		role   = flag.String("role", string(models.RoleContributor), "admin, manager, contributor or client")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	p := models.Principal{ID: *id, Email: *email, Role: models.Role(*role)}
	if p.ID == "" || !p.Role.Valid() {
		fmt.Fprintln(os.Stderr, "a principal id and a valid role are required")
		flag.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken(p, []byte(*secret), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
