// Command deployctl validates, renders and probes the service's deployment
// descriptor. It never starts containers itself; that stays with the
// orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/filmbay/rental-service/internal/deploy"
	"github.com/filmbay/rental-service/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logger.NewDefault("deployctl")

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:])
	case "render":
		err = runRender()
	case "status":
		err = runStatus(os.Args[2:], log)
	case "order":
		err = runOrder(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "deployctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: deployctl <command> [flags]

commands:
  validate [-f file]   check a descriptor and report findings
  render               print the canonical descriptor to stdout
  status   [-f file] [-host host]
                       probe the published ports of a deployed descriptor
  order    [-f file]   print services in dependency start order`)
}

func loadFlag(fs *flag.FlagSet) *string {
	return fs.String("f", "docker-compose.yml", "descriptor file")
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := loadFlag(fs)
	fs.Parse(args)

	d, err := deploy.Load(*file)
	if err != nil {
		return err
	}

	findings := d.Validate()
	for _, f := range findings {
		fmt.Println(f)
	}
	if deploy.HasErrors(findings) {
		return fmt.Errorf("%s has errors", *file)
	}
	fmt.Printf("%s: ok (%d warnings)\n", *file, len(findings))
	return nil
}

func runRender() error {
	data, err := deploy.Default().Marshal()
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func runStatus(args []string, log *logger.Logger) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	file := loadFlag(fs)
	host := fs.String("host", "localhost", "host to dial")
	timeout := fs.Duration("timeout", 30*time.Second, "overall probe timeout")
	fs.Parse(args)

	d, err := deploy.Load(*file)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results, err := deploy.NewProber(*host, log).Status(ctx, d)
	if err != nil {
		return err
	}

	down := 0
	for _, res := range results {
		state := "up"
		if !res.Up {
			state = "down"
			down++
		}
		line := fmt.Sprintf("%-12s %s", res.Service, state)
		if res.Port != "" {
			line += " port " + res.Port
		}
		if res.Health != "" {
			line += " health=" + res.Health
		}
		if res.Error != "" {
			line += " (" + res.Error + ")"
		}
		fmt.Println(line)
	}
	if down > 0 {
		return fmt.Errorf("%d service(s) down", down)
	}
	return nil
}

func runOrder(args []string) error {
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	file := loadFlag(fs)
	fs.Parse(args)

	d, err := deploy.Load(*file)
	if err != nil {
		return err
	}
	order, err := d.StartOrder()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(order, " -> "))
	return nil
}
