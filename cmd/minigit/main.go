// cmd/minigit is the thin CLI dispatcher consuming the repository façade
// (SPEC_FULL.md §4.13, out of core scope per spec.md §1). It carries no
// business logic: each subcommand parses its args, makes one façade call,
// and renders the typed result, grounded on the teacher's cmd/tig/main.go
// cobra/color layout.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"minigit/internal/clock"
	"minigit/internal/config"
	"minigit/internal/logging"
	"minigit/internal/repo"
	"minigit/internal/vcserr"
	"minigit/internal/vfs"
	"minigit/internal/watch"
)

var rootCmd = &cobra.Command{
	Use:   "minigit",
	Short: "minigit is a small local version-control engine",
	Long: `minigit tracks snapshots of a working directory through a
content-addressed object store, supports named branches, and can combine
divergent histories with a three-way merge.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

// openRepo loads the repository rooted at the current directory. Every
// subcommand but init calls this.
func openRepo() (*repo.Repo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	cfg, err := config.Load(cwd + "/.minigit/config.json")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return repo.Open(vfs.NewOSFilesystem(), cwd, clock.System{}, repo.Options{
		CacheSize: cfg.CacheSize,
		UseCache:  true,
		Logger:    logger.Logger,
	})
}

func renderError(err error) string {
	return "minigit: " + err.Error()
}

func init() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(commitCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(branchCmd())
	rootCmd.AddCommand(checkoutCmd())
	rootCmd.AddCommand(mergeCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new minigit repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			r, err := repo.Init(vfs.NewOSFilesystem(), cwd, clock.System{}, repo.Options{UseCache: true})
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Println("Initialized empty minigit repository in", cwd+"/.minigit")
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [paths...]",
		Short: "Stage files for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			for _, path := range args {
				if err := r.Add(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func commitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			oid, err := r.Commit(message)
			if err != nil {
				return err
			}
			fmt.Printf("[%s] %s\n", shortOID(oid), message)
			return nil
		},
	}
	c.Flags().StringP("message", "m", "", "Commit message")
	c.MarkFlagRequired("message")
	return c
}

func logCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			entries, err := r.Log(limit)
			if err != nil {
				return err
			}
			yellow := color.New(color.FgYellow).SprintFunc()
			for _, e := range entries {
				fmt.Printf("%s %s\n", yellow("commit "+e.OID), "")
				fmt.Printf("Date: %s\n\n    %s\n\n", e.Timestamp, e.Message)
			}
			return nil
		},
	}
	c.Flags().IntP("limit", "n", 0, "Limit the number of commits shown (0 = unlimited)")
	return c
}

func statusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Show staged changes and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			watchFlag, _ := cmd.Flags().GetBool("watch")
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := printStatus(r); err != nil {
				return err
			}
			if !watchFlag {
				return nil
			}
			return watchStatus(r)
		},
	}
	c.Flags().Bool("watch", false, "Re-print status whenever a file under the working tree changes")
	return c
}

func printStatus(r *repo.Repo) error {
	entries, err := r.Status()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("nothing staged for commit")
		return nil
	}
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	fmt.Println("Changes staged for commit:")
	for _, e := range entries {
		switch e.State {
		case "modified":
			fmt.Printf("\t%s %s\n", yellow("modified:"), e.Path)
		case "deleted":
			fmt.Printf("\t%s %s\n", red("deleted: "), e.Path)
		default:
			fmt.Printf("\t%s %s\n", green("staged:  "), e.Path)
		}
	}
	return nil
}

// watchStatus re-prints status on every filesystem change under the
// working tree until interrupted, grounded on the teacher's
// internal/change.AutoTracker watch loop (see internal/watch).
func watchStatus(r *repo.Repo) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	w, err := watch.New(cwd, nil)
	if err != nil {
		return err
	}
	defer w.Close()

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		close(stop)
	}()

	fmt.Println("watching for changes; press Ctrl-C to stop")
	w.Run(stop, func() {
		fmt.Println()
		if err := printStatus(r); err != nil {
			fmt.Fprintln(os.Stderr, renderError(err))
		}
	})
	return nil
}

func diffCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "diff [--staged | commit-a [commit-b]]",
		Short: "Show a line-level unified diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			staged, _ := cmd.Flags().GetBool("staged")
			cached, _ := cmd.Flags().GetBool("cached")
			if staged || cached {
				args = append([]string{"--staged"}, args...)
			}
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			out, err := r.Diff(args...)
			if err != nil {
				return err
			}
			printColoredDiff(out)
			return nil
		},
	}
	c.Flags().Bool("staged", false, "Diff staged content against HEAD")
	c.Flags().Bool("cached", false, "Same as --staged")
	return c
}

func branchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch [name]",
		Short: "Create a branch, or list branches with no argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			if len(args) == 0 {
				for _, b := range r.ListBranches() {
					marker := "  "
					if b.Current {
						marker = "* "
					}
					fmt.Printf("%s%s\n", marker, b.Name)
				}
				return nil
			}
			return r.Branch(args[0])
		},
	}
}

func checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Switch the working tree to another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Checkout(args[0]); err != nil {
				return err
			}
			fmt.Printf("Switched to branch '%s'\n", args[0])
			return nil
		},
	}
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge another branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			result, err := r.Merge(args[0])
			if err != nil {
				if vcserr.Is(err, vcserr.MergeConflict) {
					fmt.Println("Automatic merge failed; fix conflicts and commit the result:")
					for _, path := range result.Conflicts {
						fmt.Printf("\tboth modified:   %s\n", path)
					}
					return nil
				}
				return err
			}
			fmt.Println("Merge made by the 'recursive' strategy.")
			return nil
		},
	}
}

func shortOID(oid string) string {
	if len(oid) > 10 {
		return oid[:10]
	}
	return oid
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(diff, "\n") {
		if line == "" {
			fmt.Println()
			continue
		}
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}
