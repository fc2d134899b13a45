// Package main provides filevaultctl, a local admin binary that exercises
// the key manager and file-encryption library directly: vault onboarding,
// unlocking, key lifecycle, rekeying, backup/restore, and file
// encrypt/decrypt. It is not a network-facing service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/filevault/cmd/filevaultctl/commands"
)

func statePathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "state",
		Value: commands.DefaultStatePath,
		Usage: "path to the local JSON keystore file (ignored when DB_CONNECTION_STRING is set)",
	}
}

func idFlag(usage string) cli.Flag {
	return &cli.StringFlag{Name: "id", Required: true, Usage: usage}
}

func main() {
	cmd := &cli.Command{
		Name:  "filevaultctl",
		Usage: "local admin CLI for a filevault key manager",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply pending keystore schema migrations (requires DB_CONNECTION_STRING)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "onboard",
				Usage: "initialize a brand new vault",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "algorithm", Value: "xchacha20-poly1305", Usage: "xchacha20-poly1305 or aes-256-gcm"},
					&cli.StringFlag{Name: "hashing-algorithm", Value: "argon2id", Usage: "argon2id or balloon-blake3"},
					&cli.StringFlag{Name: "hashing-tier", Value: "standard", Usage: "standard, hardened, or paranoid"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunOnboard(
						ctx, cmd.String("state"), cmd.String("algorithm"),
						cmd.String("hashing-algorithm"), cmd.String("hashing-tier"), os.Stdout,
					)
				},
			},
			{
				Name:  "unlock",
				Usage: "derive the root key from a master password and secret key",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "secret-key", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunUnlock(ctx, cmd.String("state"), cmd.String("password"), cmd.String("secret-key"))
				},
			},
			{
				Name:  "lock",
				Usage: "drop the root key from memory",
				Flags: []cli.Flag{statePathFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunLock(ctx, cmd.String("state"))
				},
			},
			{
				Name:  "add",
				Usage: "wrap a base64-encoded key under the vault's root key",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "key", Required: true, Usage: "base64-encoded key material"},
					&cli.StringFlag{Name: "algorithm", Value: "xchacha20-poly1305"},
					&cli.StringFlag{Name: "hashing-algorithm", Value: "argon2id"},
					&cli.StringFlag{Name: "hashing-tier", Value: "standard"},
					&cli.BoolFlag{Name: "memory-only", Value: false},
					&cli.BoolFlag{Name: "automount", Value: false},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunAdd(
						ctx, cmd.String("state"), cmd.String("key"), cmd.String("algorithm"),
						cmd.String("hashing-algorithm"), cmd.String("hashing-tier"),
						cmd.Bool("memory-only"), cmd.Bool("automount"), os.Stdout,
					)
				},
			},
			{
				Name:  "save",
				Usage: "promote a memory-only key to persistent storage",
				Flags: []cli.Flag{statePathFlag(), idFlag("key uuid")},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSaveToDatabase(ctx, cmd.String("state"), cmd.String("id"))
				},
			},
			{
				Name:  "remove",
				Usage: "unmount and delete a stored key",
				Flags: []cli.Flag{statePathFlag(), idFlag("key uuid")},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRemove(ctx, cmd.String("state"), cmd.String("id"))
				},
			},
			{
				Name:  "mount",
				Usage: "recover a stored key's material into the mount table",
				Flags: []cli.Flag{statePathFlag(), idFlag("key uuid")},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMount(ctx, cmd.String("state"), cmd.String("id"))
				},
			},
			{
				Name:  "unmount",
				Usage: "drop a key from the mount table",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "id", Usage: "key uuid"},
					&cli.BoolFlag{Name: "all", Value: false, Usage: "unmount every mounted key"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunUnmount(ctx, cmd.String("state"), cmd.String("id"), cmd.Bool("all"))
				},
			},
			{
				Name:  "list",
				Usage: "list every stored key",
				Flags: []cli.Flag{statePathFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunList(ctx, cmd.String("state"), os.Stdout)
				},
			},
			{
				Name:  "list-mounted",
				Usage: "list currently mounted key ids",
				Flags: []cli.Flag{statePathFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunListMounted(ctx, cmd.String("state"), os.Stdout)
				},
			},
			{
				Name:  "set-default",
				Usage: "mark a key as the vault's default",
				Flags: []cli.Flag{statePathFlag(), idFlag("key uuid")},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSetDefault(ctx, cmd.String("state"), cmd.String("id"))
				},
			},
			{
				Name:  "get-default",
				Usage: "print the vault's default key id",
				Flags: []cli.Flag{statePathFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunGetDefault(ctx, cmd.String("state"), os.Stdout)
				},
			},
			{
				Name:  "set-automount",
				Usage: "change whether a key is mounted automatically on unlock",
				Flags: []cli.Flag{
					statePathFlag(), idFlag("key uuid"),
					&cli.BoolFlag{Name: "enabled", Value: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunChangeAutomount(ctx, cmd.String("state"), cmd.String("id"), cmd.Bool("enabled"))
				},
			},
			{
				Name:  "rekey",
				Usage: "replace the master password and secret key, rewrapping every record",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "new-password", Required: true},
					&cli.StringFlag{Name: "new-secret-key", Required: true},
					&cli.StringFlag{Name: "hashing-algorithm", Value: "argon2id"},
					&cli.StringFlag{Name: "hashing-tier", Value: "standard"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRekey(
						ctx, cmd.String("state"), cmd.String("new-password"), cmd.String("new-secret-key"),
						cmd.String("hashing-algorithm"), cmd.String("hashing-tier"), os.Stdout,
					)
				},
			},
			{
				Name:  "backup",
				Usage: "write the keystore backup file",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "out", Required: true, Usage: "backup output path"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunBackup(ctx, cmd.String("state"), cmd.String("out"), os.Stdout)
				},
			},
			{
				Name:  "restore",
				Usage: "import a keystore backup file encrypted under a different password",
				Flags: []cli.Flag{
					statePathFlag(),
					&cli.StringFlag{Name: "in", Required: true, Usage: "backup input path"},
					&cli.StringFlag{Name: "old-password", Required: true},
					&cli.StringFlag{Name: "old-secret-key", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRestore(
						ctx, cmd.String("state"), cmd.String("in"),
						cmd.String("old-password"), cmd.String("old-secret-key"), os.Stdout,
					)
				},
			},
			{
				Name:  "encrypt",
				Usage: "stream-encrypt a file under a mounted key",
				Flags: []cli.Flag{
					statePathFlag(), idFlag("mounted key uuid"),
					&cli.StringFlag{Name: "in", Required: true},
					&cli.StringFlag{Name: "out", Required: true},
					&cli.StringFlag{Name: "algorithm", Value: "xchacha20-poly1305"},
					&cli.StringFlag{Name: "hashing-algorithm", Value: "argon2id"},
					&cli.StringFlag{Name: "hashing-tier", Value: "standard"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunEncrypt(
						ctx, cmd.String("state"), cmd.String("id"), cmd.String("in"), cmd.String("out"),
						cmd.String("algorithm"), cmd.String("hashing-algorithm"), cmd.String("hashing-tier"),
					)
				},
			},
			{
				Name:  "decrypt",
				Usage: "stream-decrypt a file under a mounted key",
				Flags: []cli.Flag{
					statePathFlag(), idFlag("mounted key uuid"),
					&cli.StringFlag{Name: "in", Required: true},
					&cli.StringFlag{Name: "out", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunDecrypt(ctx, cmd.String("state"), cmd.String("id"), cmd.String("in"), cmd.String("out"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
