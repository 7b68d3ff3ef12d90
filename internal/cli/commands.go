package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/lazypower/vigil/internal/client"
	"github.com/lazypower/vigil/internal/guardian"
	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/server"
)

func newClient() *client.Client {
	return client.New(serverURL)
}

func parseAddresses(args []string) ([]common.Address, error) {
	out := make([]common.Address, len(args))
	for i, a := range args {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid address %q", a)
		}
		out[i] = common.HexToAddress(a)
	}
	return out, nil
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet's owners and their liveness",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c := newClient()
	info, err := c.Safe()
	if err != nil {
		return err
	}
	g, err := c.Guardian()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "safe      %s (nonce %d)\n", info.Address.Hex(), info.Nonce)
	fmt.Fprintf(out, "guard     %s\n", info.Guard.Hex())
	if info.Guard != g.Tracker {
		fmt.Fprintf(out, "          warning: guard is not the liveness tracker %s\n", g.Tracker.Hex())
	}
	fmt.Fprintf(out, "threshold %d of %d (required %d)\n", info.Threshold, len(info.Owners), guardian.Threshold(len(info.Owners)))
	fmt.Fprintf(out, "interval  %s, min owners %d, fallback %s\n\n", g.LivenessInterval, g.MinOwners, g.FallbackOwner.Hex())

	for _, o := range info.Owners {
		la, err := c.LastActive(o)
		if err != nil {
			return err
		}
		seen := "never"
		if la.LastActive != nil {
			seen = humanize.Time(*la.LastActive)
		}
		mark := " "
		if la.Removable {
			mark = "!"
		}
		fmt.Fprintf(out, "%s %s  last active %s\n", mark, o.Hex(), seen)
	}
	return nil
}

// --- threshold command ---

var thresholdCmd = &cobra.Command{
	Use:   "threshold N",
	Short: "Print the signing threshold required for N owners",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > guardian.MaxOwners {
			return fmt.Errorf("owner count must be an integer between 0 and %d, got %q", guardian.MaxOwners, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), guardian.Threshold(n))
		return nil
	},
}

// --- plan command ---

var planCmd = &cobra.Command{
	Use:   "plan ADDRESS...",
	Short: "Compute the previous-owner hints for removing owners in order",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owners, err := parseAddresses(args)
		if err != nil {
			return err
		}
		hints, err := newClient().Plan(owners)
		if err != nil {
			return err
		}
		for i, h := range hints {
			fmt.Fprintf(cmd.OutOrStdout(), "%s after %s\n", owners[i].Hex(), h.Hex())
		}
		return nil
	},
}

// --- remove command ---

var removeInactive bool

var removeCmd = &cobra.Command{
	Use:   "remove [ADDRESS...]",
	Short: "Remove inactive owners",
	Long:  "Plans the previous-owner hints and submits the removal. With --inactive, targets every owner whose liveness has lapsed.",
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	c := newClient()

	var owners []common.Address
	switch {
	case removeInactive && len(args) > 0:
		return errors.New("pass addresses or --inactive, not both")
	case removeInactive:
		inactive, err := c.Inactive()
		if err != nil {
			return err
		}
		if len(inactive) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no inactive owners")
			return nil
		}
		owners = inactive
	case len(args) == 0:
		return errors.New("no owners given")
	default:
		parsed, err := parseAddresses(args)
		if err != nil {
			return err
		}
		owners = parsed
	}

	hints, err := c.Plan(owners)
	if err != nil {
		return fmt.Errorf("plan removal: %w", err)
	}
	resp, err := c.Remove(hints, owners)
	if err != nil {
		return fmt.Errorf("remove owners: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "removed %d owner(s); %d remain, threshold %d\n", len(owners), len(resp.Owners), resp.Threshold)
	for _, o := range resp.Owners {
		fmt.Fprintf(out, "  %s\n", o.Hex())
	}
	return nil
}

// --- refresh command ---

var refreshKey string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Prove the key's owner is alive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if refreshKey == "" {
			return errors.New("--key is required")
		}
		key, err := crypto.LoadECDSA(refreshKey)
		if err != nil {
			return fmt.Errorf("load key: %w", err)
		}
		id := crypto.PubkeyToAddress(key.PublicKey)

		c := newClient()
		info, err := c.Safe()
		if err != nil {
			return err
		}

		issued := time.Now().Unix()
		digest := liveness.RefreshDigest(info.Address, id, issued)
		sig, err := crypto.Sign(digest[:], key)
		if err != nil {
			return fmt.Errorf("sign refresh: %w", err)
		}

		resp, err := c.Refresh(server.RefreshRequest{Address: id, IssuedAt: issued, Signature: sig})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s refreshed at %s\n", id.Hex(), resp.LastActive.Format(time.RFC3339))
		if !resp.IsOwner {
			fmt.Fprintln(cmd.OutOrStdout(), "note: this identity is not an owner of the wallet")
		}
		return nil
	},
}

// --- keygen command ---

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an owner key file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keygenOut == "" {
			return errors.New("--out is required")
		}
		if _, err := os.Stat(keygenOut); err == nil {
			return fmt.Errorf("%s already exists", keygenOut)
		}
		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := crypto.SaveECDSA(keygenOut, key); err != nil {
			return fmt.Errorf("save key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), crypto.PubkeyToAddress(key.PublicKey).Hex())
		return nil
	},
}

func init() {
	removeCmd.Flags().BoolVar(&removeInactive, "inactive", false, "remove every owner whose liveness has lapsed")
	refreshCmd.Flags().StringVar(&refreshKey, "key", "", "hex private key file")
	keygenCmd.Flags().StringVar(&keygenOut, "out", "", "path to write the hex private key")
}
