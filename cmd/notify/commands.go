package notify

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/lib/ipc"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/spf13/cobra"
	"strconv"
	"strings"
)

var (
	embeddedTag    uint32
	embeddedReads  []string
	embeddedWrites []string

	embeddedCmd = &cobra.Command{
		Use:   "embedded [hex]",
		Short: "Forward a block handed over directly",
		Long: `Forward a block handed over directly. The block is either given as hex or built from --read offset:length and --write offset:hex records (in this order), followed by the terminator.
The answered block is printed as hex, READ payloads are printed per record.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			block, err := buildBlock(args)
			if err != nil {
				return err
			}
			reply, err := send(common.NewEmbeddedFrame(embeddedTag, block))
			if err != nil {
				return err
			}
			fmt.Println(common.EncodeHex(reply))
			printReads(reply)
			return nil
		},
	}
	referencedCmd = &cobra.Command{
		Use:   "referenced [region-id] [offset]",
		Short: "Forward the block at an offset inside a shared region",
		Long:  "Forward the block at an offset inside a shared region. Both numbers accept a 0x prefix.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("region-id must be a 32 bit number: %w", err)
			}
			offset, err := strconv.ParseInt(args[1], 0, 64)
			if err != nil {
				return fmt.Errorf("offset must be a number: %w", err)
			}
			if _, err := send(common.NewReferencedFrame(uint32(id), offset)); err != nil {
				return err
			}
			fmt.Println("forwarded successfully")
			return nil
		},
	}
	restartCmd = &cobra.Command{
		Use:   "restart [host:port|socket-path]",
		Short: "Reconnect the bridge, optionally to a new answering service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := ""
			if len(args) == 1 {
				endpoint = args[0]
			}
			if _, err := send(common.NewRestartFrame(endpoint)); err != nil {
				return err
			}
			fmt.Println("restarted successfully")
			return nil
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the connection status of the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := send(common.NewStatusFrame())
			if err != nil {
				return err
			}
			fmt.Println(string(status))
			return nil
		},
	}
	shutdownCmd = &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := send(common.NewShutdownFrame()); err != nil {
				return err
			}
			fmt.Println("shut down successfully")
			return nil
		},
	}
)

func init() {
	embeddedCmd.Flags().Uint32Var(&embeddedTag, "tag", 0, "Source tag sent along with the block")
	embeddedCmd.Flags().StringArrayVar(&embeddedReads, "read", nil, "READ record as offset:length (repeatable)")
	embeddedCmd.Flags().StringArrayVar(&embeddedWrites, "write", nil, "WRITE record as offset:hex (repeatable)")
}

// buildBlock returns the hex argument or the block built from the record flags
func buildBlock(args []string) ([]byte, error) {
	if len(args) == 1 {
		if len(embeddedReads) > 0 || len(embeddedWrites) > 0 {
			return nil, fmt.Errorf("either pass a hex block or --read/--write records, not both")
		}
		return common.DecodeHex(args[0])
	}

	var block []byte
	for i, r := range embeddedReads {
		offset, rest, err := splitRecordFlag(r)
		if err != nil {
			return nil, err
		}
		length, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("--read %s: invalid length: %w", r, err)
		}
		block = ipc.AppendRead(block, offset, uint32(length), uint32(i+1))
	}
	for _, w := range embeddedWrites {
		offset, rest, err := splitRecordFlag(w)
		if err != nil {
			return nil, err
		}
		payload, err := common.DecodeHex(rest)
		if err != nil {
			return nil, fmt.Errorf("--write %s: %w", w, err)
		}
		block = ipc.AppendWrite(block, offset, payload)
	}
	if block == nil {
		return nil, fmt.Errorf("nothing to send: pass a hex block or at least one --read/--write record")
	}
	return ipc.AppendTerminator(block), nil
}

func splitRecordFlag(value string) (uint32, string, error) {
	offsetStr, rest, ok := strings.Cut(value, ":")
	if !ok {
		return 0, "", fmt.Errorf("invalid record %q: expected offset:value", value)
	}
	offset, err := strconv.ParseUint(offsetStr, 0, 32)
	if err != nil {
		return 0, "", fmt.Errorf("invalid record %q: offset: %w", value, err)
	}
	return uint32(offset), rest, nil
}

// printReads prints the payload of every READ record in the answered block
func printReads(block []byte) {
	_, _ = ipc.Walk(block, func(pos int, rec ipc.Record) error {
		if r, ok := rec.(ipc.ReadRequest); ok {
			fmt.Printf("read 0x%04X+%d -> %s\n", r.Offset, r.Length, common.EncodeHex(r.Payload))
		}
		return nil
	})
}
