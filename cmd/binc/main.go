// Command binc is a simple command line tool for creating, manipulating,
// viewing and serving BINC documents.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phroun/binc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var remote string

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	root := &cobra.Command{
		Use:   "binc",
		Short: "Create, manipulate, view and serve BINC documents",
	}
	root.PersistentFlags().StringVarP(&remote, "remote", "r", "", "remote server to connect to (host:port)")

	root.AddCommand(
		newListCmd(),
		newCreateFileCmd(),
		newHistoryCmd(),
		newPrintCmd(),
		newServeCmd(sugar),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List the contents of a store directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if remote != "" {
				client, err := binc.Dial(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				resp, err := client.Request(cmd.Context(), binc.ListFilesRequest(path))
				if err != nil {
					return err
				}
				printFiles(resp.Files)
				return nil
			}
			store := binc.NewStore(path)
			files, err := store.ListFiles()
			if err != nil {
				return err
			}
			printFiles(files)
			return nil
		},
	}
}

func newCreateFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-file [path]",
		Short: "Create a new, empty BINC document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if remote != "" {
				client, err := binc.Dial(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				resp, err := client.Request(cmd.Context(), binc.CreateFileRequest(path))
				if err != nil {
					return err
				}
				if !resp.Ok() {
					return fmt.Errorf("%s", resp.Err)
				}
				fmt.Println("File created")
				return nil
			}
			store := binc.NewStore(".")
			if err := store.CreateFile(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Println("File created")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [path]",
		Short: "Print the revision history of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			var repo *binc.Repository
			if remote != "" {
				client, err := binc.Dial(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				resp, err := client.Request(cmd.Context(), binc.GetFileDataRequest(path, 0))
				if err != nil {
					return err
				}
				doc := binc.NewDocument(binc.DocumentOptions{})
				if err := doc.AppendAndApply(resp.Bytes); err != nil {
					return err
				}
				repo = doc.Repository()
			} else {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				var err2 error
				repo, err2 = binc.ReadRepository(f, binc.ReadRevisionOptions{})
				if err2 != nil {
					return err2
				}
			}

			for i, rev := range repo.Revisions {
				fmt.Printf("%d: %s %s %s %s\n", i+1, rev.UserName, rev.Date, rev.ID, rev.Message)
				for _, op := range rev.Operations {
					fmt.Printf("  %s\n", op.String())
				}
			}
			return nil
		},
	}
}

func newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print [path]",
		Short: "Print the document tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			var doc *binc.Document
			if remote != "" {
				client, err := binc.Dial(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				resp, err := client.Request(cmd.Context(), binc.GetFileDataRequest(path, 0))
				if err != nil {
					return err
				}
				doc = binc.NewDocument(binc.DocumentOptions{})
				if err := doc.AppendAndApply(resp.Bytes); err != nil {
					return err
				}
			} else {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				doc, err = binc.OpenDocument(f, binc.DocumentOptions{})
				if err != nil {
					return err
				}
			}

			for _, rootID := range doc.Nodes().FindRoots() {
				printTree(doc, rootID, 0)
			}
			return nil
		},
	}
}

func newServeCmd(log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [path] [port]",
		Short: "Serve the contents of a store directory over TCP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// A bare port listens on all interfaces; host:port is used as given.
			addr := args[1]
			if !strings.Contains(addr, ":") {
				addr = ":" + addr
			}

			store := binc.NewStore(args[0])
			server := binc.NewServer(store, log)
			fmt.Printf("Serving %s on %s\n", args[0], addr)
			return server.ListenAndServe(ctx, addr)
		},
	}
}

func printFiles(files []string) {
	for _, f := range files {
		fmt.Println(f)
	}
}

func printTree(doc *binc.Document, id binc.NodeID, depth int) {
	n := doc.Nodes().Get(id)
	if n == nil {
		return
	}
	label := fmt.Sprintf("ID%d", id)
	if name, ok := n.Name(); ok {
		label = name
	}

	fmt.Print(strings.Repeat("  ", depth))
	fmt.Print(label)
	if attrs := n.Attributes(); len(attrs) > 0 {
		fmt.Print(" (")
		for i, a := range attrs {
			if i > 0 {
				fmt.Print(", ")
			}
			attrName, _ := doc.Attributes.Get(a.Key())
			fmt.Printf("%s: %s", attrName, a.Value())
		}
		fmt.Print(")")
	}
	fmt.Println()

	for _, c := range n.Children() {
		printTree(doc, c, depth+1)
	}
}
