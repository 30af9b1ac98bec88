package lexicon

import (
	"go.uber.org/zap"
)

// Options selects which lexical sources to combine.
type Options struct {
	WordNetDir    string
	ThesaurusPath string
	Inflections   bool
}

// Load builds the process-wide lexicon. Sources that fail to load are
// logged as warnings and skipped; the result is never nil.
func Load(opts Options, logger *zap.Logger) Lexicon {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("lexicon")

	var chain Chain
	if opts.WordNetDir != "" {
		wn, err := LoadWordNet(opts.WordNetDir)
		if err != nil {
			logger.Warn("WordNet unavailable, continuing without it",
				zap.String("dir", opts.WordNetDir),
				zap.Error(err))
		} else {
			logger.Info("Loaded WordNet", zap.Int("synsets", wn.Synsets()))
			chain = append(chain, wn)
		}
	}

	if opts.ThesaurusPath != "" {
		th, err := LoadThesaurus(opts.ThesaurusPath)
		if err != nil {
			logger.Warn("Thesaurus unavailable, continuing without it",
				zap.String("path", opts.ThesaurusPath),
				zap.Error(err))
		} else {
			logger.Info("Loaded thesaurus", zap.Int("words", th.Len()))
			chain = append(chain, th)
		}
	}

	if opts.Inflections {
		chain = append(chain, Inflections{})
	}

	switch len(chain) {
	case 0:
		logger.Warn("No lexical synonym source configured; only abbreviations will expand terms")
		return None{}
	case 1:
		return chain[0]
	default:
		return chain
	}
}
