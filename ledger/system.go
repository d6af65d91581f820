package ledger

// ApplySystemTx runs one privileged, non-fee-bearing system transaction.
// Unlike Apply, there is no partial-success encoding: a system
// transaction either fully applies or is rejected outright, since it
// originates from the block producer role rather than an ordinary
// sender and carries no segments to partially commit.
func ApplySystemTx(sysTx *SystemTransaction, state *LedgerState) (*LedgerState, error) {
	working := state.Clone()

	switch sysTx.Kind {
	case SysMint:
		if err := applySysMint(sysTx, working); err != nil {
			return state, wrapErr(ErrKindSystemTransaction, err)
		}
	case SysDistributeRewards:
		if err := applySysDistributeRewards(sysTx, working); err != nil {
			return state, wrapErr(ErrKindSystemTransaction, err)
		}
	case SysReplayProtection:
		if err := applySysReplayProtection(sysTx, working); err != nil {
			return state, wrapErr(ErrKindSystemTransaction, err)
		}
	default:
		return state, wrapErr(ErrKindSystemTransaction, ErrIllegalMint)
	}
	return working, nil
}

func applySysMint(sysTx *SystemTransaction, state *LedgerState) error {
	sum, overflow := state.Treasury[sysTx.TokenType].Add(sysTx.Amount)
	if overflow {
		return ErrIllegalMint
	}
	state.Treasury[sysTx.TokenType] = sum
	return nil
}

func applySysDistributeRewards(sysTx *SystemTransaction, state *LedgerState) error {
	balance := state.Treasury[sysTx.TokenType]
	if balance.Cmp(sysTx.Amount) < 0 {
		return ErrInsufficientTreasury
	}
	remaining, _ := balance.Sub(sysTx.Amount)
	state.Treasury[sysTx.TokenType] = remaining

	sum, overflow := state.UnclaimedBlockRewards.Add(sysTx.Amount)
	if overflow {
		return ErrInsufficientTreasury
	}
	state.UnclaimedBlockRewards = sum
	return nil
}

func applySysReplayProtection(sysTx *SystemTransaction, state *LedgerState) error {
	if _, seen := state.ReplayCommitments[sysTx.Commitment]; seen {
		return ErrCommitmentAlreadyPresent
	}
	state.ReplayCommitments[sysTx.Commitment] = struct{}{}
	return nil
}

// PostBlockUpdate runs once after every transaction in a block has been
// applied: it enforces the block's synthetic-cost budget, advances dust
// generation time, and resets the per-block fullness accumulator.
// Expiring intents whose TTL has passed is a no-op here: this ledger core
// holds no cross-block intent queue (mempool admission is out of scope),
// so every intent's TTL is already checked once, at well-formedness time
// within the block that carries it.
func PostBlockUpdate(state *LedgerState, tblock int64, totalCost uint64) (*LedgerState, error) {
	if state.Parameters.MaxBlockSize != 0 && totalCost > state.Parameters.MaxBlockSize {
		return state, newErr(ErrKindBlockLimitExceeded, "block cost %d exceeds limit %d", totalCost, state.Parameters.MaxBlockSize)
	}

	working := state.Clone()
	working.Dust.AdvanceTime(tblock)
	working.Fullness = BlockFullness{}
	return working, nil
}
