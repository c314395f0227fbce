package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rota-planner/backend/pkg/database"
)

// NewMigrateCommand 数据库迁移：up / down / version
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps 必须为正数")
			}
			return withSQL(rootOpts, func(rt *runtime) error {
				sqlDB, err := rt.db.DB()
				if err != nil {
					return err
				}
				if err := database.RollbackMigrations(sqlDB, steps, rt.logger); err != nil {
					return err
				}
				return printVersion(cmd.OutOrStdout(), rootOpts.Format, rt)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚步数")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "执行全部未应用的迁移",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSQL(rootOpts, func(rt *runtime) error {
					sqlDB, err := rt.db.DB()
					if err != nil {
						return err
					}
					if err := database.RunMigrations(sqlDB, rt.logger); err != nil {
						return err
					}
					return printVersion(cmd.OutOrStdout(), rootOpts.Format, rt)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "查看当前迁移版本",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSQL(rootOpts, func(rt *runtime) error {
					return printVersion(cmd.OutOrStdout(), rootOpts.Format, rt)
				})
			},
		},
	)

	return cmd
}

func withSQL(opts *RootOptions, fn func(rt *runtime) error) error {
	rt, err := loadRuntime(opts, true)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(rt)
}

func printVersion(w io.Writer, format string, rt *runtime) error {
	sqlDB, err := rt.db.DB()
	if err != nil {
		return err
	}
	version, dirty, err := database.MigrationVersion(sqlDB)
	if err != nil {
		return err
	}
	return printResult(w, format, map[string]interface{}{"version": version, "dirty": dirty}, func(w io.Writer) {
		fmt.Fprintf(w, "migration version: %d (dirty=%t)\n", version, dirty)
	})
}
