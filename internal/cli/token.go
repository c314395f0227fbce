package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"rota-planner/backend/pkg/jwt"
)

// TokenOptions token 命令参数
type TokenOptions struct {
	UserID      string
	Role        string
	PhysicianID string
	TTL         time.Duration
}

// NewTokenCommand 使用服务端密钥签发 Access Token，供联调与脚本使用
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发 Access Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "用户 ID（必填）")
	cmd.Flags().StringVar(&opts.Role, "role", jwt.RolePhysician, "角色 (admin|physician)")
	cmd.Flags().StringVar(&opts.PhysicianID, "physician", "", "医生 ID（physician 角色必填）")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "有效期，0 表示使用配置值")

	return cmd
}

func runToken(rootOpts *RootOptions, opts *TokenOptions, w io.Writer) error {
	if opts.UserID == "" {
		return fmt.Errorf("--user 不能为空")
	}
	switch opts.Role {
	case jwt.RoleAdmin:
	case jwt.RolePhysician:
		if opts.PhysicianID == "" {
			return fmt.Errorf("physician 角色必须指定 --physician")
		}
	default:
		return fmt.Errorf("未知角色 %q", opts.Role)
	}

	rt, err := loadRuntime(rootOpts, false)
	if err != nil {
		return err
	}
	defer rt.close()

	mgr := jwt.NewManager(&rt.cfg.Auth)
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = rt.cfg.Auth.AccessTokenTTL
	}
	token, err := mgr.GenerateAccessTokenTTL(opts.UserID, opts.Role, opts.PhysicianID, ttl)
	if err != nil {
		return fmt.Errorf("签发失败: %w", err)
	}

	return printResult(w, rootOpts.Format, map[string]interface{}{
		"access_token": token,
		"expires_in":   int(ttl.Seconds()),
	}, func(w io.Writer) {
		fmt.Fprintln(w, token)
	})
}
