package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type repeaterStats struct {
	BattMV             uint16
	TxQueueLen         uint16
	NoiseFloor         int16
	LastRSSI           int16
	NPktsRecv          uint32
	NPktsSent          uint32
	TotalAirTimeSecs   uint32
	TotalUpTimeSecs    uint32
	NSentFlood         uint32
	NSentDirect        uint32
	NRecvFlood         uint32
	NRecvDirect        uint32
	ErrEvents          uint16
	LastSNRQ2          int16
	NDirectDups        uint16
	NFloodDups         uint16
	TotalRxAirTimeSecs uint32
	NRecvErrors        uint32
}

type statusResponse struct {
	NodeName        string
	FirmwareLevel   uint8
	Stats           repeaterStats
	ACLSize         int
	NeighbourCount  int
	RegionCount     int
	BridgeEnabled   bool
	BridgeConnected bool
	BridgeBanned    bool
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status statusResponse
			if err := apiGet(cmd.Context(), "/v1/status", &status); err != nil {
				return fmt.Errorf("get status: %w", err)
			}
			return printResult(outputFormat, status, func() (string, error) {
				return formatStatusTable(status), nil
			})
		},
	}
}

func formatStatusTable(s statusResponse) string {
	var buf strings.Builder
	w := newTabwriter(&buf)

	fmt.Fprintf(w, "Node Name:\t%s\n", s.NodeName)
	fmt.Fprintf(w, "Firmware Level:\t%d\n", s.FirmwareLevel)
	fmt.Fprintf(w, "ACL Size:\t%d\n", s.ACLSize)
	fmt.Fprintf(w, "Neighbour Count:\t%d\n", s.NeighbourCount)
	fmt.Fprintf(w, "Region Count:\t%d\n", s.RegionCount)
	fmt.Fprintf(w, "Bridge Enabled:\t%t\n", s.BridgeEnabled)
	fmt.Fprintf(w, "Bridge Connected:\t%t\n", s.BridgeConnected)
	fmt.Fprintf(w, "Bridge Banned:\t%t\n", s.BridgeBanned)
	fmt.Fprintf(w, "Battery mV:\t%d\n", s.Stats.BattMV)
	fmt.Fprintf(w, "TX Queue Len:\t%d\n", s.Stats.TxQueueLen)
	fmt.Fprintf(w, "Noise Floor:\t%d\n", s.Stats.NoiseFloor)
	fmt.Fprintf(w, "Last RSSI:\t%d\n", s.Stats.LastRSSI)
	fmt.Fprintf(w, "Last SNR (Q2):\t%d\n", s.Stats.LastSNRQ2)
	fmt.Fprintf(w, "Packets Received:\t%d\n", s.Stats.NPktsRecv)
	fmt.Fprintf(w, "Packets Sent:\t%d\n", s.Stats.NPktsSent)
	fmt.Fprintf(w, "Sent Flood/Direct:\t%d/%d\n", s.Stats.NSentFlood, s.Stats.NSentDirect)
	fmt.Fprintf(w, "Recv Flood/Direct:\t%d/%d\n", s.Stats.NRecvFlood, s.Stats.NRecvDirect)
	fmt.Fprintf(w, "Dup Direct/Flood:\t%d/%d\n", s.Stats.NDirectDups, s.Stats.NFloodDups)
	fmt.Fprintf(w, "Recv Errors:\t%d\n", s.Stats.NRecvErrors)
	fmt.Fprintf(w, "Error Events:\t%d\n", s.Stats.ErrEvents)
	fmt.Fprintf(w, "Total Air Time (s):\t%d\n", s.Stats.TotalAirTimeSecs)
	fmt.Fprintf(w, "Total RX Air Time (s):\t%d\n", s.Stats.TotalRxAirTimeSecs)
	fmt.Fprintf(w, "Total Up Time (s):\t%d\n", s.Stats.TotalUpTimeSecs)

	_ = w.Flush()
	return buf.String()
}
