package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/branched-services/go-nestedpool"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Use:           "nestedpool",
			Short:         "Compile joins and exits across nested Balancer pools into batch relayer calls",
			SilenceUsage:  true,
			SilenceErrors: true,
		},
	}

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		joinCommand(),
		exitCommand(),
		validateCommand(),
	)
}

// Execute runs the command selected by the arguments.
func (rc *RootCommand) Execute(ctx context.Context) error {
	return rc.baseCmd.ExecuteContext(ctx)
}

// SetArgs overrides the arguments, for tests.
func (rc *RootCommand) SetArgs(args []string) {
	rc.baseCmd.SetArgs(args)
}

// SetOutput redirects the command output, for tests.
func (rc *RootCommand) SetOutput(w io.Writer) {
	rc.baseCmd.SetOut(w)
	rc.baseCmd.SetErr(w)
}

// txParams are the flags shared by join and exit.
type txParams struct {
	configPath string
	poolsPath  string
	sender     string
	recipient  string
	signature  string
	native     bool
}

func (p *txParams) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.configPath, "config", "config.yaml", "path to the configuration file")
	cmd.Flags().StringVar(&p.poolsPath, "pools", "", "path to the pool state file (YAML or JSON)")
	cmd.Flags().StringVar(&p.sender, "sender", "", "address supplying the tokens")
	cmd.Flags().StringVar(&p.recipient, "recipient", "", "address receiving the output (defaults to sender)")
	cmd.Flags().StringVar(&p.signature, "signature", "", "hex relayer authorization signature")
	cmd.Flags().BoolVar(&p.native, "native", false, "use the native asset instead of its wrapped token")

	_ = cmd.MarkFlagRequired("pools")
	_ = cmd.MarkFlagRequired("sender")
}

// resolved is the parsed form of txParams.
type resolved struct {
	cfg       *Config
	state     nestedpool.NestedPoolState
	sender    common.Address
	recipient common.Address
	signature []byte
}

func (p *txParams) resolve() (*resolved, error) {
	cfg, err := LoadConfig(p.configPath)
	if err != nil {
		return nil, err
	}
	state, err := loadState(p.poolsPath)
	if err != nil {
		return nil, err
	}
	sender, err := parseAddress(p.sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	recipient := sender
	if p.recipient != "" {
		if recipient, err = parseAddress(p.recipient); err != nil {
			return nil, fmt.Errorf("recipient: %w", err)
		}
	}
	var signature []byte
	if p.signature != "" {
		if signature, err = hexutil.Decode(p.signature); err != nil {
			return nil, fmt.Errorf("signature: %w", err)
		}
	}
	return &resolved{cfg: cfg, state: state, sender: sender, recipient: recipient, signature: signature}, nil
}

func joinCommand() *cobra.Command {
	var (
		params  txParams
		amounts []string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Query and finalize a join from main tokens into the root pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := params.resolve()
			if err != nil {
				return err
			}
			req := nestedpool.JoinRequest{
				ChainID:        r.cfg.ChainID,
				Sender:         r.sender,
				Recipient:      r.recipient,
				UseNativeAsset: params.native,
			}
			for _, s := range amounts {
				a, err := parseAmount(s)
				if err != nil {
					return err
				}
				req.AmountsIn = append(req.AmountsIn, a)
			}

			return run(cmd.Context(), cmd.OutOrStdout(), r, func(ctx context.Context, c *nestedpool.Compiler) (*nestedpool.QueryResult, error) {
				return c.QueryJoin(ctx, r.state, req)
			})
		},
	}
	params.register(cmd)
	cmd.Flags().StringArrayVar(&amounts, "amount", nil, "main token amount as <token>=<amount>, repeatable")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func exitCommand() *cobra.Command {
	var (
		params   txParams
		amountIn string
		tokenOut string
	)
	cmd := &cobra.Command{
		Use:   "exit",
		Short: "Query and finalize an exit from the root pool into main tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := params.resolve()
			if err != nil {
				return err
			}
			bpt, ok := new(big.Int).SetString(amountIn, 10)
			if !ok {
				return fmt.Errorf("amount %q: invalid value", amountIn)
			}
			req := nestedpool.ExitRequest{
				ChainID:        r.cfg.ChainID,
				AmountIn:       bpt,
				Sender:         r.sender,
				Recipient:      r.recipient,
				UseNativeAsset: params.native,
			}
			if tokenOut != "" {
				token, err := parseAddress(tokenOut)
				if err != nil {
					return fmt.Errorf("token-out: %w", err)
				}
				req.TokenOut = &token
			}

			return run(cmd.Context(), cmd.OutOrStdout(), r, func(ctx context.Context, c *nestedpool.Compiler) (*nestedpool.QueryResult, error) {
				return c.QueryExit(ctx, r.state, req)
			})
		},
	}
	params.register(cmd)
	cmd.Flags().StringVar(&amountIn, "amount", "", "root pool token amount to burn")
	cmd.Flags().StringVar(&tokenOut, "token-out", "", "exit into a single main token (proportional when unset)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func validateCommand() *cobra.Command {
	var poolsPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pool state file describes a well-formed nested pool tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := loadState(poolsPath)
			if err != nil {
				return err
			}
			return validate(cmd.OutOrStdout(), state)
		},
	}
	cmd.Flags().StringVar(&poolsPath, "pools", "", "path to the pool state file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("pools")
	return cmd
}

func validate(w io.Writer, state nestedpool.NestedPoolState) error {
	g, err := nestedpool.NewGraph(state)
	if err != nil {
		var serr *nestedpool.StructuralError
		if errors.As(err, &serr) {
			for _, v := range serr.Violations() {
				_, _ = fmt.Fprintln(w, "invalid:", v)
			}
		}
		return err
	}
	for _, pool := range g.Pools() {
		_, _ = fmt.Fprintf(w, "level %d: %s %s (%d tokens)\n", pool.Level, pool.Kind, pool.Address.Hex(), len(pool.Tokens))
	}
	return nil
}

// amountOutput is a token amount in the JSON output.
type amountOutput struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

// payloadOutput is the finalized payload printed by join and exit.
type payloadOutput struct {
	To       common.Address `json:"to"`
	Data     hexutil.Bytes  `json:"data"`
	Value    *hexutil.Big   `json:"value"`
	Expected []amountOutput `json:"expected"`
	Minimum  []amountOutput `json:"minimum"`
}

func amountOutputs(in []nestedpool.TokenAmount) []amountOutput {
	out := make([]amountOutput, len(in))
	for i, a := range in {
		out[i] = amountOutput{Token: a.Token.Address, Amount: a.Amount.String()}
	}
	return out
}

type queryFunc func(ctx context.Context, c *nestedpool.Compiler) (*nestedpool.QueryResult, error)

func run(ctx context.Context, w io.Writer, r *resolved, query queryFunc) error {
	logger := r.cfg.Logger()

	c, closeFn, err := dialCompiler(ctx, r.cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := query(ctx, c)
	if err != nil {
		return err
	}
	payload, err := c.Finalize(nestedpool.FinalizeInput{
		Query:                  res,
		Slippage:               r.cfg.Slippage,
		AuthorizationSignature: r.signature,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payloadOutput{
		To:       payload.To,
		Data:     payload.CallData,
		Value:    (*hexutil.Big)(payload.Value),
		Expected: amountOutputs(res.Amounts),
		Minimum:  amountOutputs(payload.Bounds),
	})
}
