package admintools

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mathrand "math/rand"
	"os"
	"strings"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/migration"
	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/website"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

func init() {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}
	website.WebsiteCommand.AddCommand(adminCommand)

	setupPasswordsCommand := &cobra.Command{
		Use:   "setuppasswords",
		Short: "Give every user without a password the default password",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn := openMigrated(ctx)
			defer conn.Close()

			if err := SetupPasswords(ctx, conn, os.Stdout); err != nil {
				panic(err)
			}
		},
	}
	adminCommand.AddCommand(setupPasswordsCommand)

	generatePasswordsCommand := &cobra.Command{
		Use:   "generatepasswords [comma-separated usernames]",
		Short: "Set random passwords for the given users and print them as CSV",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Fprintf(os.Stderr, "Usage: generatepasswords \"User1,User2,User3\"\n")
				os.Exit(1)
			}

			ctx := context.Background()
			conn := openMigrated(ctx)
			defer conn.Close()

			err := GeneratePasswords(ctx, conn, strings.Split(args[0], ","), rand.Reader, os.Stdout)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
					os.Exit(1)
				}
				panic(err)
			}
		},
	}
	adminCommand.AddCommand(generatePasswordsCommand)

	usersWithoutPasswordsCommand := &cobra.Command{
		Use:   "userswithoutpasswords",
		Short: "List users that have no password yet",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn := openMigrated(ctx)
			defer conn.Close()

			names, err := UsersWithoutPasswords(ctx, conn)
			if err != nil {
				panic(err)
			}
			fmt.Println(strings.Join(names, ","))
		},
	}
	adminCommand.AddCommand(usersWithoutPasswordsCommand)

	setPasswordCommand := &cobra.Command{
		Use:   "setpassword [username] [new password]",
		Short: "Replace a user's password",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a username and a password.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			username := args[0]
			password := args[1]

			ctx := context.Background()
			conn := openMigrated(ctx)
			defer conn.Close()

			user, err := trackerdata.FindUserByName(ctx, conn, username)
			if err != nil {
				if errors.Is(err, db.NotFound) {
					fmt.Printf("User '%s' not found\n", username)
					os.Exit(1)
				} else {
					panic(err)
				}
			}

			hashedPassword := auth.HashPassword(password)
			if err := trackerdata.UpdateUserPassword(ctx, conn, user.ID, hashedPassword.String()); err != nil {
				panic(err)
			}

			fmt.Printf("Successfully updated password for '%s'\n", user.Name)
		},
	}
	adminCommand.AddCommand(setPasswordCommand)

	createUserCommand := &cobra.Command{
		Use:   "createuser [name] [color]",
		Short: "Add a user to the tracker",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a name.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			color := "#888888"
			if len(args) > 1 {
				color = args[1]
			}

			ctx := context.Background()
			conn := openMigrated(ctx)
			defer conn.Close()

			if _, err := trackerdata.FindUserByName(ctx, conn, name); err == nil {
				fmt.Printf("User '%s' already exists\n", name)
				os.Exit(1)
			} else if !errors.Is(err, db.NotFound) {
				panic(err)
			}

			user, err := trackerdata.CreateUser(ctx, conn, name, color)
			if err != nil {
				panic(err)
			}
			fmt.Printf("Created user '%s' (id %d)\n", user.Name, user.ID)
		},
	}
	adminCommand.AddCommand(createUserCommand)

	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample users and weights",
		Run: func(cmd *cobra.Command, args []string) {
			randomUsers, _ := cmd.Flags().GetInt("random")
			randomSeed, _ := cmd.Flags().GetInt64("rand-seed")

			ctx := context.Background()
			conn := openMigrated(ctx)
			defer conn.Close()

			opts := SeedOptions{RandomUsers: randomUsers}
			if randomSeed != 0 {
				opts.Rand = mathrand.New(mathrand.NewSource(randomSeed))
			}
			if err := Seed(ctx, conn, opts, os.Stdout); err != nil {
				panic(err)
			}
		},
	}
	seedCommand.Flags().Int("random", 0, "Number of extra users with generated names")
	seedCommand.Flags().Int64("rand-seed", 0, "Seed for generated users (0 picks one)")
	adminCommand.AddCommand(seedCommand)
}

func openMigrated(ctx context.Context) *sqlx.DB {
	conn := db.MustOpen()
	if err := migration.Migrate(ctx, conn, types.MigrationVersion{}); err != nil {
		panic(err)
	}
	return conn
}
