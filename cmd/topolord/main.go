package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/topolord/topolord/pkg/client"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: topolord <command> [args]

Commands:
  service add <id> [team] [category]       create a manual service
  service rm <id> [id...]                  delete manual services
  dep add <source> <target> [protocol]     create a dependency edge
  app create <name> <id,id,...>            group services into an application
  import <file>                            import topology from CSV or YAML
  export [csv|yaml]                        export topology to stdout
  status                                   check daemon health

The daemon address comes from TOPOLORD_URL (default http://127.0.0.1:8090).
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	c := client.NewClient(os.Getenv("TOPOLORD_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "service":
		err = runService(ctx, c, os.Args[2:])
	case "dep":
		err = runDep(ctx, c, os.Args[2:])
	case "app":
		err = runApp(ctx, c, os.Args[2:])
	case "import":
		err = runImport(ctx, c, os.Args[2:])
	case "export":
		err = runExport(ctx, c, os.Args[2:])
	case "status":
		err = runStatus(ctx, c)
	case "version":
		fmt.Printf("topolord %s (%s, built %s)\n", Version, Commit, BuildTime)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		if client.IsNotManual(err) {
			fmt.Println("Error: that entity is provider-discovered and cannot be edited")
		} else {
			fmt.Printf("Error: %v\n", err)
			fmt.Println("Is topolord-d running?")
		}
		os.Exit(1)
	}
}

func runService(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: topolord service add|rm <id> ...")
	}
	switch args[0] {
	case "add":
		req := client.ServiceRequest{ID: args[1], DisplayName: args[1]}
		if len(args) > 2 {
			req.Team = args[2]
		}
		if len(args) > 3 {
			req.Category = args[3]
		}
		svc, err := c.CreateService(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("Service created: %s\n", svc.ID)
		return nil
	case "rm":
		deleted, err := c.DeleteServices(ctx, args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d of %d services\n", deleted, len(args[1:]))
		return nil
	default:
		return fmt.Errorf("unknown service subcommand: %s", args[0])
	}
}

func runDep(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 3 || args[0] != "add" {
		return fmt.Errorf("usage: topolord dep add <source> <target> [protocol]")
	}
	req := client.DependencyRequest{SourceID: args[1], TargetID: args[2]}
	if len(args) > 3 {
		req.Protocol = args[3]
	}
	if err := c.CreateDependency(ctx, req); err != nil {
		return err
	}
	fmt.Printf("Dependency created: %s -> %s\n", req.SourceID, req.TargetID)
	return nil
}

func runApp(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 3 || args[0] != "create" {
		return fmt.Errorf("usage: topolord app create <name> <id,id,...>")
	}
	var ids []string
	for _, part := range strings.Split(args[2], ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	app, err := c.CreateApplication(ctx, client.ApplicationRequest{Name: args[1], ServiceIDs: ids})
	if err != nil {
		return err
	}
	fmt.Printf("Application created: %s (%s) with %d services\n", app.Name, app.ID, len(app.ServiceIDs))
	return nil
}

func runImport(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: topolord import <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	// The server sniffs the content, but a file extension is a better hint.
	format := ""
	switch strings.ToLower(filepath.Ext(args[0])) {
	case ".csv":
		format = "csv"
	case ".yaml", ".yml":
		format = "yaml"
	}

	result, err := c.Import(ctx, format, data)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d services and %d dependencies (%s)\n",
		result.Services, result.Dependencies, result.Format)
	return nil
}

func runExport(ctx context.Context, c *client.Client, args []string) error {
	format := "yaml"
	if len(args) > 0 {
		format = args[0]
	}
	data, err := c.Export(ctx, format)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func runStatus(ctx context.Context, c *client.Client) error {
	status, err := c.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Daemon is %s\n", status.Status)
	return nil
}
