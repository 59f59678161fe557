package anthropic

// BuildCachedSystemBlocks constructs a system block with a five-minute
// cache breakpoint. Empty text yields no blocks.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "5m"},
		},
	}
}
