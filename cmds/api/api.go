/*
Package api has the client side commands of the demo API. Every command
calls one endpoint of the running server and prints the result.
*/
package api

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/findy-network/findy-triangle/client"
	"github.com/findy-network/findy-triangle/cmds"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const maxHolderName = 100

// Base is embedded to all of the API commands.
type Base struct {
	BaseAddr string
}

func (b Base) Validate() error {
	return cmds.ValidateURL(b.BaseAddr)
}

func (b Base) client() *client.Client {
	return client.New(strings.TrimSuffix(b.BaseAddr, "/"))
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(),
		utils.Settings.ExchangeTimeout()+utils.Settings.Timeout())
}

type StatusCmd struct {
	Base
}

func (c StatusCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "status")

	ctx, cancel := ctx()
	defer cancel()

	cl := c.client()
	version := try.To1(cl.Version(ctx))
	status, err := cl.Status(ctx)
	if err != nil {
		status = "disconnected"
	}
	cmds.Fprintf(w, "%s\nconnection: %s\n", version, status)
	return cmds.JSONResult{Value: map[string]string{
		"version": version,
		"status":  status,
	}}, nil
}

type RegisterCmd struct {
	Base
	SchemaName string
}

func (c RegisterCmd) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if c.SchemaName == "" {
		return fmt.Errorf("%w: schema name cannot be empty", cmds.ErrInvalid)
	}
	return nil
}

func (c RegisterCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "register %s", c.SchemaName)

	ctx, cancel := ctx()
	defer cancel()

	res := try.To1(c.client().Register(ctx, c.SchemaName))
	cmds.Fprintln(w, "schema:", res.SchemaID)
	cmds.Fprintln(w, "cred def:", res.CredentialDefinitionID)
	return cmds.JSONResult{Value: res}, nil
}

type IssueCmd struct {
	Base
	CredDefID  string
	HolderName string
}

func (c IssueCmd) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if c.CredDefID == "" {
		return fmt.Errorf("%w: credential definition ID cannot be empty", cmds.ErrInvalid)
	}
	if utf8.RuneCountInString(c.HolderName) > maxHolderName {
		return fmt.Errorf("%w: holder name too long", cmds.ErrInvalid)
	}
	return nil
}

func (c IssueCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "issue")

	ctx, cancel := ctx()
	defer cancel()

	res := try.To1(c.client().Issue(ctx, c.CredDefID, c.HolderName))
	cmds.Fprintln(w, "Issued!", res.CredentialID)
	return cmds.JSONResult{Value: res}, nil
}

type VerifyCmd struct {
	Base
	CredDefID string
}

func (c VerifyCmd) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if c.CredDefID == "" {
		return fmt.Errorf("%w: credential definition ID cannot be empty", cmds.ErrInvalid)
	}
	return nil
}

func (c VerifyCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "verify")

	ctx, cancel := ctx()
	defer cancel()

	res := try.To1(c.client().Verify(ctx, c.CredDefID))
	cmds.Fprintln(w, "Verified!", res.ProofID, res.RevealedValues)
	return cmds.JSONResult{Value: res}, nil
}
