package db

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand. It returns the process
// exit code.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) int {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return 1
	}
	migFS, err := getMigrationsFS()
	if err != nil {
		fmt.Fprintf(out, "Failed to get migrations filesystem: %v\n", err)
		return 1
	}
	database, err := OpenDB(dbPath)
	if err != nil {
		fmt.Fprintf(out, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer database.Close()

	if err := runMigrateAction(database, migFS, args, out); err != nil {
		fmt.Fprintf(out, "%v\n", err)
		return 1
	}
	return 0
}

func runMigrateAction(database *DB, migFS fs.FS, args []string, out io.Writer) error {
	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(migFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations applied")
		return printVersion(database, migFS, out)

	case "down":
		if err := database.MigrateDown(migFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "Rolled back one migration")
		return printVersion(database, migFS, out)

	case "status":
		st, err := database.GetMigrationStatus(migFS)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current version: %d\n", st.CurrentVersion)
		fmt.Fprintf(out, "Latest available: %d\n", st.LatestVersion)
		fmt.Fprintf(out, "Dirty: %v\n", st.Dirty)
		fmt.Fprintf(out, "Schema migrations table exists: %v\n", st.TableExists)
		if st.Dirty {
			fmt.Fprintln(out, "Database is dirty: inspect it, then run 'pulse migrate force <version>'")
		}
		return nil

	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: pulse migrate %s <version_number>", action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if action == "force" {
			if err := database.MigrateForce(migFS, v); err != nil {
				return err
			}
			fmt.Fprintf(out, "Migration version forced to %d\n", v)
			return nil
		}
		if err := database.MigrateTo(migFS, uint(v)); err != nil {
			return err
		}
		return printVersion(database, migFS, out)

	case "help":
		PrintMigrateHelp(out)
		return nil

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(database *DB, migFS fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// PrintMigrateHelp writes the usage of the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprint(out, `Database Migration Commands

Usage: pulse migrate <command> [args]

Commands:
  up              Apply all pending migrations
  down            Roll back one migration
  status          Show current and latest migration version
  version <N>     Migrate to version N
  force <N>       Force the recorded version to N (recovery only)
  help            Show this help message
`)
}
