package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/propvault/pkg/client"
	"github.com/yeisme/propvault/pkg/client/attachment"
	"github.com/yeisme/propvault/pkg/client/form"
	"github.com/yeisme/propvault/pkg/client/gateway"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/types"
)

// recordFlags record 子命令共用的参数.
type recordFlags struct {
	category    string
	page        int
	search      string
	recycled    bool
	sets        []string
	files       []string
	removeFiles []string
	off         bool
	yes         bool
}

var rf recordFlags

var (
	recordCmd = &cobra.Command{
		Use:     "record",
		Short:   "maintain property records on the server",
		Aliases: []string{"rec"},
	}

	recordListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list records of a category",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				q := ws.Listing.Query()
				q.Page = rf.page
				q.Search = strings.TrimSpace(rf.search)
				q.RecycleBin = rf.recycled

				page, err := ws.Listing.Fetch(ctx, q)
				if err != nil {
					return err
				}

				printPage(cmd.OutOrStdout(), page)

				return nil
			})
		},
	}

	recordShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "print one record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				rec, err := ws.Gateway.Get(ctx, args[0])
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}

	recordAddCmd = &cobra.Command{
		Use:   "add",
		Short: "create a record from --set fields and --file attachments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				ws.Form.StartNew()

				if err := applyDraft(ws.Form, rf.sets, rf.files); err != nil {
					return err
				}

				rec, err := ws.Engine.Submit(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", rec.ID)

				return nil
			})
		},
	}

	recordEditCmd = &cobra.Command{
		Use:   "edit <id>",
		Short: "update fields, append attachments or remove attachments of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				rec, err := ws.Gateway.Get(ctx, args[0])
				if err != nil {
					return err
				}

				ws.Form.StartEdit(rec)

				for _, ref := range rf.removeFiles {
					if err := removeAttachment(ctx, ws.Form, ref); err != nil {
						return err
					}

					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", ref)
				}

				if len(rf.sets) == 0 && len(rf.files) == 0 {
					return nil
				}

				if err := applyDraft(ws.Form, rf.sets, rf.files); err != nil {
					return err
				}

				updated, err := ws.Engine.Submit(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated.ID)

				return nil
			})
		},
	}

	recordOnBoardCmd = &cobra.Command{
		Use:   "onboard <id>",
		Short: "mark a record as on board (--off to clear)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				return ws.Listing.SetOnBoard(ctx, args[0], !rf.off)
			})
		},
	}

	recordRecycleCmd = &cobra.Command{
		Use:   "recycle <id>",
		Short: "move a record to the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				return ws.Listing.MoveToRecycleBin(ctx, args[0])
			})
		},
	}

	recordRestoreCmd = &cobra.Command{
		Use:   "restore <id>",
		Short: "move a record out of the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				return ws.Listing.Restore(ctx, args[0])
			})
		},
	}

	recordPurgeCmd = &cobra.Command{
		Use:   "purge <id>",
		Short: "permanently delete a record that is in the recycle bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, ws *client.Workspace) error {
				if err := showInRecycleBin(ctx, ws, args[0]); err != nil {
					return err
				}

				return ws.Listing.PermanentDelete(ctx, args[0])
			})
		},
	}

	recordFieldsCmd = &cobra.Command{
		Use:   "fields",
		Short: "print the field table and suggested selector values",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

			fmt.Fprintln(tw, "NAME\tLABEL")

			for _, spec := range types.FieldTable {
				fmt.Fprintf(tw, "%s\t%s\n", spec.Name, spec.Label)
			}

			_ = tw.Flush()

			fmt.Fprintln(out)
			fmt.Fprintln(out, "categories:", categoryNames())
			fmt.Fprintln(out, "file_type:", strings.Join(types.FileTypes, " | "))
			fmt.Fprintln(out, "land_type:", strings.Join(types.LandTypes, " | "))
			fmt.Fprintln(out, "tenure:", strings.Join(types.Tenures, " | "))
		},
	}
)

// withWorkspace 按客户端配置打开工作区，执行 fn 后关闭.
func withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, ws *client.Workspace) error) error {
	cfg := configs.GetConfig().Client
	if rf.category != "" {
		cfg.Category = rf.category
	}

	confirm := form.AlwaysConfirm
	if !rf.yes {
		confirm = stdinConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	ws, err := client.New(cfg, client.WithConfirmer(confirm))
	if err != nil {
		return err
	}
	defer ws.Close()

	return fn(cmd.Context(), ws)
}

// stdinConfirmer 在终端上询问 y/N.
func stdinConfirmer(in io.Reader, out io.Writer) form.Confirmer {
	reader := bufio.NewReader(in)

	return form.ConfirmFunc(func(_ context.Context, prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}

// applyDraft 把 key=value 字段与本地文件写入草稿. category 可作为字段设置.
func applyDraft(state *form.State, sets, files []string) error {
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set %q: want key=value", kv)
		}

		key = strings.TrimSpace(key)

		if key == "category" {
			c, err := types.ParseCategory(value)
			if err != nil {
				return err
			}

			if err := state.SetCategory(c); err != nil {
				return err
			}

			continue
		}

		if err := state.SetField(types.FieldName(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}

	for _, path := range files {
		f, err := attachment.ReadFile(path)
		if err != nil {
			return err
		}

		kind, err := attachment.DetectKind(f)
		if err != nil {
			return err
		}

		if kind == types.KindPDF {
			state.AddDocuments(f)
		} else {
			state.AddImages(f)
		}
	}

	return nil
}

// removeAttachment 按 kind:remoteId 删除已持久化的附件，kind 为 images 或 pdfs.
func removeAttachment(ctx context.Context, state *form.State, ref string) error {
	rawKind, remoteID, ok := strings.Cut(ref, ":")
	if !ok || remoteID == "" {
		return fmt.Errorf("--remove-file %q: want images:<remoteId> or pdfs:<remoteId>", ref)
	}

	kind, err := types.ParseFileType(rawKind)
	if err != nil {
		return err
	}

	draft := state.Snapshot()
	for i, a := range draft.Attachments(kind) {
		if !a.IsStaged() && a.RemoteID() == remoteID {
			return state.RemoveAttachment(ctx, kind, i)
		}
	}

	return fmt.Errorf("%s %q not found on record", kind.FileType(), remoteID)
}

// showInRecycleBin 翻页加载回收站视图，直到包含 id. 永久删除只对当前视图中的记录生效.
func showInRecycleBin(ctx context.Context, ws *client.Workspace, id string) error {
	rec, err := ws.Gateway.Get(ctx, id)
	if err != nil {
		return err
	}

	q := gateway.Query{Page: 1, Limit: 100, Category: rec.Category, RecycleBin: true}

	for {
		page, err := ws.Listing.Fetch(ctx, q)
		if err != nil {
			return err
		}

		for _, item := range page.Items {
			if item.ID == id {
				return nil
			}
		}

		if !page.HasNext {
			return errors.New("record is not in the recycle bin")
		}

		q.Page++
	}
}

func printPage(out io.Writer, page *gateway.Page) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHARER\tVILLAGE\tSURVEY\tIMAGES\tPDFS\tONBOARD\tUPDATED")

	for _, r := range page.Items {
		survey := r.NewSurveyNo
		if survey == "" {
			survey = r.OldSurveyNo
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
			r.ID, r.SharerName, r.Village, survey, len(r.Images), len(r.PDFs), r.OnBoard,
			r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}

	_ = tw.Flush()

	fmt.Fprintf(out, "page %d/%d, %d records\n", page.Page, page.TotalPages, page.TotalItems)
}

func printJSON(out io.Writer, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(b))

	return err
}

func categoryNames() string {
	names := make([]string, 0, len(types.Categories()))
	for _, c := range types.Categories() {
		names = append(names, c.String())
	}

	return strings.Join(names, " | ")
}

// registerRecordCommands 注册记录维护命令.
func registerRecordCommands() {
	recordCmd.PersistentFlags().StringVar(&rf.category, "category", "", "record category (defaults to client.category)")
	recordCmd.PersistentFlags().BoolVarP(&rf.yes, "yes", "y", false, "do not ask for confirmation")

	recordListCmd.Flags().IntVar(&rf.page, "page", 1, "page number")
	recordListCmd.Flags().StringVar(&rf.search, "search", "", "search text")
	recordListCmd.Flags().BoolVar(&rf.recycled, "recycled", false, "list the recycle bin")

	for _, c := range []*cobra.Command{recordAddCmd, recordEditCmd} {
		c.Flags().StringArrayVar(&rf.sets, "set", nil, "field value as key=value (repeatable)")
		c.Flags().StringArrayVar(&rf.files, "file", nil, "image or PDF to attach (repeatable)")
	}

	recordEditCmd.Flags().StringArrayVar(&rf.removeFiles, "remove-file", nil, "attachment to delete as images:<remoteId> or pdfs:<remoteId>")
	recordOnBoardCmd.Flags().BoolVar(&rf.off, "off", false, "clear the on-board flag")

	recordCmd.AddCommand(
		recordListCmd,
		recordShowCmd,
		recordAddCmd,
		recordEditCmd,
		recordOnBoardCmd,
		recordRecycleCmd,
		recordRestoreCmd,
		recordPurgeCmd,
		recordFieldsCmd,
	)

	rootCmd.AddCommand(recordCmd)
}
