// Package budget enforces token admission control around model calls.
//
// A Guard owns the process-wide budget state behind a single mutex: a
// sliding per-minute token window, a minimum inter-call spacing, and a
// hard lifetime ceiling. Every outbound model call must be admitted with
// an estimate of the tokens about to be consumed, and again afterwards
// with the estimate of the response actually received:
//
//	guard := budget.New(100_000, 1_000_000_000)
//	if err := guard.Admit(ctx, budget.EstimateMessages(prompt)); err != nil {
//	    return err
//	}
//	resp, err := client.Complete(ctx, req)
//	...
//	if err := guard.Admit(ctx, budget.Estimate(resp.Content)); err != nil {
//	    return err
//	}
//
// Spacing and window waits are transparent delays, not errors; only the
// lifetime ceiling produces an error (provider.ErrQuotaExceeded), and once
// it does, every later admission fails for the rest of the process.
//
// Wrap a provider client so both admissions happen automatically:
//
//	client = budget.Guarded(client, guard)
//
// # Estimation
//
// Token estimation uses the rule-of-thumb that approximately 4 characters
// equals 1 token for English text. It is an approximation, not a
// tokenizer count, and is applied uniformly to prompts and responses; the
// guard treats the estimate as authoritative for quota purposes.
package budget
