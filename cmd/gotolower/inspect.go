package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gotolower/internal/gotoc"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <table.symtab.mp>...",
	Short: "Print symbol table archives as text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Bool("header", false, "print only producer, machine model and symbol count")
}

func runInspect(cmd *cobra.Command, args []string) error {
	headerOnly, _ := cmd.Flags().GetBool("header")
	out := cmd.OutOrStdout()
	for _, path := range args {
		st, producer, err := readArchiveFile(path)
		if err != nil {
			return err
		}
		if headerOnly || len(args) > 1 {
			mm := st.MachineModel()
			fmt.Fprintf(out, "# %s: %s, %s/%d-bit, %d symbol(s)\n",
				path, producer, mm.Architecture, mm.PointerWidth, st.Len())
		}
		if headerOnly {
			continue
		}
		if err := gotoc.WriteText(out, st); err != nil {
			return fmt.Errorf("failed to print %s: %w", path, err)
		}
	}
	return nil
}

func readArchiveFile(path string) (*gotoc.SymbolTable, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	st, producer, err := gotoc.ReadArchive(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return st, producer, nil
}
