package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/atinyakov/VaultKeeper/internal/client/vaults"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"
)

const helpText = `Available commands:
  list                          show vaults
  create <name>                 create a vault
  open <name>                   unlock a vault
  close <name>                  lock a vault
  accounts <name>               show accounts assigned to a vault
  move <name> [+addr] [-addr]   add (+) or remove (-) accounts
  help                          show this text
  exit                          quit`

// accountLister is the part of the gateway client the shell uses directly.
type accountLister interface {
	VaultAccounts(ctx context.Context, vaultName string) (map[string]string, error)
}

// shell is the interactive front end driving the vault store.
type shell struct {
	store    *vaults.Store
	accounts accountLister
	in       *bufio.Scanner
	out      io.Writer
	// secretFD is a terminal used for echo-free password input, or -1.
	secretFD int
}

func newShell(store *vaults.Store, accounts accountLister, in io.Reader, out io.Writer) *shell {
	sh := &shell{
		store:    store,
		accounts: accounts,
		in:       bufio.NewScanner(in),
		out:      out,
		secretFD: -1,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		sh.secretFD = int(f.Fd())
	}
	return sh
}

// run reads commands until exit, end of input or ctx is done.
func (sh *shell) run(ctx context.Context) {
	sh.store.LoadVaults(ctx)

	for ctx.Err() == nil {
		fmt.Fprint(sh.out, "vaults> ")
		line, ok := sh.readLine()
		if !ok {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		var err error
		switch args[0] {
		case "help":
			fmt.Fprintln(sh.out, helpText)
		case "list":
			sh.store.LoadVaults(ctx)
			sh.list()
		case "create":
			err = withName(args, func(name string) error { return sh.create(ctx, name) })
		case "open":
			err = withName(args, func(name string) error { return sh.open(ctx, name) })
		case "close":
			err = withName(args, func(name string) error { return sh.close(ctx, name) })
		case "accounts":
			err = withName(args, func(name string) error { return sh.listAccounts(ctx, name) })
		case "move":
			err = sh.move(ctx, args[1:])
		case "exit":
			fmt.Fprintln(sh.out, "Bye")
			return
		default:
			fmt.Fprintln(sh.out, "Unknown command. Type 'help' for a list of commands.")
		}
		if err != nil {
			fmt.Fprintln(sh.out, "Error:", err)
		}
	}
}

func withName(args []string, fn func(string) error) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s <name>", args[0])
	}
	return fn(args[1])
}

func (sh *shell) readLine() (string, bool) {
	if !sh.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.in.Text()), true
}

func (sh *shell) prompt(label string) string {
	fmt.Fprint(sh.out, label)
	line, _ := sh.readLine()
	return line
}

func (sh *shell) promptSecret(label string) string {
	if sh.secretFD < 0 {
		return sh.prompt(label)
	}
	fmt.Fprint(sh.out, label)
	b, err := term.ReadPassword(sh.secretFD)
	fmt.Fprintln(sh.out)
	if err != nil {
		return ""
	}
	return string(b)
}

func (sh *shell) list() {
	st := sh.store.Snapshot()
	if len(st.Vaults) == 0 {
		fmt.Fprintln(sh.out, "No vaults")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tDESCRIPTION\tHINT")
	for _, v := range st.Vaults {
		state := "locked"
		if v.IsOpen {
			state = "open"
		}
		if v.Meta.IsZero() {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\n", v.Name, state)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, state, v.Meta.Description, v.Meta.PasswordHint)
	}
	_ = tw.Flush()
}

func (sh *shell) create(ctx context.Context, name string) error {
	sh.store.OpenCreateModal()
	defer sh.store.CloseCreateModal()

	sh.store.SetVaultName(name)
	if err := sh.store.Snapshot().VaultNameError; err != nil {
		return err
	}
	sh.store.SetVaultDescription(sh.prompt("Description: "))
	sh.store.SetVaultPassword(sh.promptSecret("Password: "))
	sh.store.SetVaultPasswordRepeat(sh.promptSecret("Repeat password: "))
	sh.store.SetVaultPasswordHint(sh.prompt("Password hint: "))

	if err := sh.store.CreateVault(ctx); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Vault %s created\n", name)
	return nil
}

func (sh *shell) open(ctx context.Context, name string) error {
	sh.store.OpenUnlockModal(name)
	defer sh.store.CloseUnlockModal()

	st := sh.store.Snapshot()
	if st.SelectedVault == nil {
		return fmt.Errorf("no vault named %q", name)
	}
	if hint := st.SelectedVault.Meta.PasswordHint; hint != "" {
		fmt.Fprintf(sh.out, "Hint: %s\n", hint)
	}
	sh.store.SetVaultPassword(sh.promptSecret("Password: "))

	if err := sh.store.OpenVault(ctx); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Vault %s opened\n", st.SelectedVault.Name)
	return nil
}

func (sh *shell) close(ctx context.Context, name string) error {
	sh.store.OpenLockModal(name)
	defer sh.store.CloseLockModal()

	st := sh.store.Snapshot()
	if st.SelectedVault == nil {
		return fmt.Errorf("no vault named %q", name)
	}
	if err := sh.store.CloseVault(ctx); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Vault %s closed\n", st.SelectedVault.Name)
	return nil
}

func (sh *shell) listAccounts(ctx context.Context, name string) error {
	accounts, err := sh.accounts.VaultAccounts(ctx, name)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(sh.out, "No accounts")
		return nil
	}
	addresses := make([]string, 0, len(accounts))
	for address := range accounts {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	for _, address := range addresses {
		fmt.Fprintln(sh.out, address)
	}
	return nil
}

// move toggles +addr accounts into the selection and submits the selection
// as accounts moving in; -addr accounts move out of any vault.
func (sh *shell) move(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: move <name> [+addr] [-addr]")
	}
	name := args[0]

	sh.store.OpenAccountsModal(name)
	defer sh.store.CloseAccountsModal()
	if sh.store.Snapshot().SelectedVault == nil {
		return fmt.Errorf("no vault named %q", name)
	}

	var out []string
	for _, arg := range args[1:] {
		if len(arg) < 2 || (arg[0] != '+' && arg[0] != '-') {
			return fmt.Errorf("account %q must start with + or -", arg)
		}
		address := arg[1:]
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid address %q", address)
		}
		if arg[0] == '+' {
			sh.store.ToggleSelectedAccount(address)
		} else {
			out = append(out, address)
		}
	}

	var in []string
	for address, selected := range sh.store.Snapshot().SelectedAccounts {
		if selected {
			in = append(in, address)
		}
	}
	sort.Strings(in)

	if err := sh.store.MoveAccounts(ctx, name, in, out); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Moved %d in, %d out\n", len(in), len(out))
	return nil
}
