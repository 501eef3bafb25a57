package main

import (
	"strconv"
	"strings"

	"github.com/address-geocoder/internal/normalizer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <address...>",
		Short: "Chuẩn hóa địa chỉ (không gọi geocode)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := normalizer.New()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("원본주소", "정규화된주소", "신뢰도", "행정구역", "보정")
			for _, na := range n.NormalizeBatch(args) {
				if err := table.Append([]string{
					na.Original,
					na.Normalized,
					strconv.Itoa(na.Confidence),
					yesNo(n.HasAdminArea(na.Normalized)),
					strings.Join(na.Corrections, ", "),
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func yesNo(ok bool) string {
	if ok {
		return "O"
	}
	return "X"
}
