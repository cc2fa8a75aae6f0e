package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mythologiq/gg-core/wire"
)

func newInferCommand(flags *rootFlags) *cobra.Command {
	var (
		model     string
		prompt    string
		maxTokens int
		stream    bool
	)
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Submit a single inference request and print the completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(cmd, flags, model, prompt, maxTokens, stream)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model id to run the prompt against")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 256, "maximum tokens to generate")
	cmd.Flags().BoolVar(&stream, "stream", false, "print chunks as they arrive rather than waiting for completion")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func runInfer(cmd *cobra.Command, flags *rootFlags, model, prompt string, maxTokens int, stream bool) error {
	token := os.Getenv("CORE_AUTH_TOKEN")
	c, err := dial(flags.socketPath, token)
	if err != nil {
		return err
	}
	defer c.Close()

	req := wire.InferenceRequest{
		ModelID: model,
		Prompt:  prompt,
		Params: wire.SamplingParams{
			MaxTokens:   maxTokens,
			Temperature: 0.7,
			TopP:        1.0,
			Stream:      stream,
		},
	}

	env, err := c.roundTrip(wire.TypeInferenceRequest, req)
	if err != nil {
		return err
	}

	if stream {
		for {
			var chunk wire.StreamChunk
			if err := wire.DecodePayload(env, &chunk); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), chunk.Text)
			if chunk.IsFinal {
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}
			if env, err = c.readEnvelope(); err != nil {
				return err
			}
		}
	}

	var resp wire.InferenceResponse
	if err := wire.DecodePayload(env, &resp); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
	return nil
}
