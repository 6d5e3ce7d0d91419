// Package nestedpool compiles joins and exits across trees of nested liquidity
// pools into a single batch of relayer calls.
//
// A nested pool tree is a chain of pools where each pool may hold the receipt
// token of the pool below it alongside plain main tokens. Joining deposits main
// tokens at every level and feeds each pool's receipt token into its parent;
// exiting burns the root receipt token and unwinds the chain downwards.
// Amounts produced at runtime travel between calls as chained references,
// relayer storage slots written by one call and read by a later one.
//
// # Basic Usage
//
// Build a compiler for a relayer deployment, query a join and finalize it:
//
//	codec := relayer.NewCodec(relayer.Mainnet)
//	executor := relayer.NewExecutor(client, relayer.Mainnet.Relayer, nil)
//	compiler := nestedpool.New(codec, executor)
//
//	res, err := compiler.QueryJoin(ctx, state, nestedpool.JoinRequest{
//	    ChainID:   1,
//	    AmountsIn: []nestedpool.AmountIn{{Token: dai, Amount: amount}},
//	    Sender:    user,
//	    Recipient: user,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	payload, err := compiler.Finalize(nestedpool.FinalizeInput{
//	    Query:    res,
//	    Slippage: nestedpool.MustSlippage("0.5"),
//	})
//
// payload.CallData is sent to payload.To with payload.Value.
//
// # Plans
//
// Joins run leaves first and end with the root pool, whose receipt token is
// published under FinalReferenceKey. Pools whose subtree receives nothing are
// skipped. Exits run root first; a proportional exit visits every pool, a
// single-token exit only the path to the pool holding the requested token.
//
// Every reference a call reads is published by a strictly earlier call of the
// same plan, and each temporary reference is read at most once.
//
// # Query and Finalize
//
// A query simulates the plan without bounds and peeks every delivered output.
// Finalize bounds those outputs by the observed amounts minus slippage and
// encodes the same calls; plans are never rebuilt between the two steps.
package nestedpool
