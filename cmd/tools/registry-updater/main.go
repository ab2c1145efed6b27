// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"mergington-activities/internal/activities"
	"mergington-activities/pkg/registry"
)

const defaultSeedPath = "configs/activities.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		path := fs.String("path", defaultSeedPath, "Path to seed file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		c, err := registry.LoadSeed(*path)
		if err != nil {
			return fmt.Errorf("seed validation failed: %w", err)
		}
		fmt.Fprintf(out, "Seed validation passed. Found %d activities.\n", c.Len())
		return nil

	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		path := fs.String("path", defaultSeedPath, "Path to seed file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		c, err := loadOrDefault(*path)
		if err != nil {
			return err
		}
		for _, a := range c.Activities() {
			fmt.Fprintf(out, "%-20s %3d/%-3d %s\n", a.Name, len(a.Participants), a.MaxParticipants, a.Schedule)
		}
		return nil

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		path := fs.String("path", defaultSeedPath, "Path to seed file")
		name := fs.String("name", "", "Activity name (e.g., Robotics Club)")
		description := fs.String("description", "", "Description")
		schedule := fs.String("schedule", "", "Schedule (e.g., Mondays, 3:00 PM - 4:00 PM)")
		maxParticipants := fs.Int("max", 0, "Maximum participants")
		participants := fs.String("participants", "", "Comma-separated initial participants")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *name == "" || *description == "" || *schedule == "" || *maxParticipants < 1 {
			fs.Usage()
			return fmt.Errorf("name, description, schedule and a positive max are required for add")
		}
		a := activities.Activity{
			Name:            *name,
			Description:     *description,
			Schedule:        *schedule,
			MaxParticipants: *maxParticipants,
			Participants:    splitList(*participants),
		}
		if err := addActivity(*path, a); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added activity: %s\n", *name)
		return nil

	case "remove":
		fs := flag.NewFlagSet("remove", flag.ContinueOnError)
		path := fs.String("path", defaultSeedPath, "Path to seed file")
		name := fs.String("name", "", "Activity name to remove")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *name == "" {
			fs.Usage()
			return fmt.Errorf("name is required for remove")
		}
		if err := removeActivity(*path, *name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed activity: %s\n", *name)
		return nil

	case "help":
		help()
		return nil

	default:
		help()
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadOrDefault reads the seed at path, or the built-in catalog when the
// file does not exist yet.
func loadOrDefault(path string) (*activities.Catalog, error) {
	c, err := registry.LoadSeed(path)
	if err == nil {
		return c, nil
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return activities.DefaultCatalog(), nil
	}
	return nil, fmt.Errorf("failed to load seed: %w", err)
}

func addActivity(path string, a activities.Activity) error {
	c, err := loadOrDefault(path)
	if err != nil {
		return err
	}
	if _, exists := c.Get(a.Name); exists {
		return fmt.Errorf("activity %q already exists", a.Name)
	}
	return save(path, activities.NewCatalog(append(c.Activities(), a)...))
}

func removeActivity(path, name string) error {
	c, err := loadOrDefault(path)
	if err != nil {
		return err
	}
	if _, exists := c.Get(name); !exists {
		return fmt.Errorf("activity %q not found", name)
	}

	kept := make([]activities.Activity, 0, c.Len()-1)
	for _, a := range c.Activities() {
		if a.Name != name {
			kept = append(kept, a)
		}
	}
	return save(path, activities.NewCatalog(kept...))
}

// save re-validates the catalog before it replaces the file, so the tool
// never writes a seed the service would refuse to start with.
func save(path string, c *activities.Catalog) error {
	raw, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal seed: %w", err)
	}
	if err := registry.Validate(raw); err != nil {
		return err
	}
	return registry.SaveSeed(path, c)
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  validate  Validate a seed file against the activity schema
  list      Print the activities in a seed file
  add       Add a new activity to a seed file
  remove    Remove an activity from a seed file
  help      Show this help message

Examples:
  registry-updater validate -path configs/activities.json
  registry-updater add -name "Robotics Club" -description "Build robots" -schedule "Mondays, 3:00 PM - 5:00 PM" -max 10
  registry-updater remove -name "Robotics Club"

A missing seed file starts from the built-in catalog.
Use 'registry-updater <command> -h' for more information about a command.`)
}
