package app

import (
	"github.com/ThatCatDev/llamatools/internal/builder"
	"github.com/ThatCatDev/llamatools/internal/config"
)

// Form defaults seeded from the config file.

func ChatDefaults(cfg *config.Config) builder.ChatForm {
	return builder.ChatForm{
		BinDir:       cfg.BinDir,
		ChatTemplate: cfg.Chat.ChatTemplate,
		CtxSize:      cfg.Chat.CtxSize,
		Threads:      cfg.Chat.Threads,
		Color:        cfg.Chat.Color,
		Interactive:  true,
	}
}

func ServerDefaults(cfg *config.Config) builder.ServerForm {
	return builder.ServerForm{
		BinDir:    cfg.BinDir,
		CtxSize:   cfg.Server.CtxSize,
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		GPULayers: cfg.Server.GPULayers,
	}
}

func QuantizeDefaults(cfg *config.Config) builder.QuantizeForm {
	qtype := cfg.Quantize.DefaultType
	if canonical, err := builder.ParseQuantType(qtype); err == nil {
		qtype = canonical
	} else {
		qtype = builder.DefaultQuantType
	}
	return builder.QuantizeForm{BinDir: cfg.BinDir, Type: qtype}
}

func ConvertDefaults(cfg *config.Config) builder.ConvertForm {
	return builder.ConvertForm{
		LlamaDir: cfg.LlamaDir,
		Script:   builder.ScriptHF,
		OutType:  builder.PresetOutType(builder.ScriptHF),
	}
}

func PerplexityDefaults(cfg *config.Config) builder.PerplexityForm {
	return builder.PerplexityForm{
		BinDir:  cfg.BinDir,
		CtxSize: cfg.Perplexity.CtxSize,
		Batch:   cfg.Perplexity.BatchSize,
		Chunks:  cfg.Perplexity.Chunks,
	}
}
