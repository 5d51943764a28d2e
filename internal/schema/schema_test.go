package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildSchema(t *testing.T) {
	root := &cobra.Command{Use: "aztec"}
	child := &cobra.Command{Use: "actions", Short: "workflow runs"}
	leaf := &cobra.Command{Use: "status", Short: "show one run"}
	leaf.Flags().String("action-id", "", "Action identifier")
	_ = leaf.MarkFlagRequired("action-id")
	child.AddCommand(leaf)
	root.AddCommand(child)

	s, err := Build(root, "actions status")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "aztec actions status" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 1 || s.Flags[0].Name != "action-id" || !s.Flags[0].Required {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
}

func TestBuildSchemaMarksFundMovingCommands(t *testing.T) {
	root := &cobra.Command{Use: "aztec"}
	root.AddCommand(&cobra.Command{Use: "deposit", Annotations: map[string]string{AnnotationMovesFunds: "true"}})
	root.AddCommand(&cobra.Command{Use: "balance"})

	s, err := Build(root, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := map[string]bool{}
	for _, sub := range s.Subcommands {
		got[sub.Use] = sub.MovesFunds
	}
	if !got["deposit"] || got["balance"] {
		t.Fatalf("unexpected moves_funds flags: %+v", got)
	}
	if _, err := Build(root, "nope"); err == nil {
		t.Fatal("expected unknown path error")
	}
}

func TestBuildSchemaListsInheritedFlags(t *testing.T) {
	root := &cobra.Command{Use: "aztec"}
	root.PersistentFlags().Bool("json", false, "JSON output")
	leaf := &cobra.Command{Use: "fees", Example: "  aztec fees --asset dai", Run: func(*cobra.Command, []string) {}}
	leaf.Flags().String("asset", "eth", "Asset symbol")
	root.AddCommand(leaf)

	s, err := Build(root, "fees")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Inherited) != 1 || s.Inherited[0] != "json" {
		t.Fatalf("unexpected inherited flags: %v", s.Inherited)
	}
	if s.Example == "" {
		t.Fatal("expected example to be carried")
	}
	for _, f := range s.Flags {
		if f.Name == "help" {
			t.Fatal("help flag must be omitted")
		}
	}
}
