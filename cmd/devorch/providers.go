package main

// Provider blank imports: each import activates a self-registering adapter.

import (
	_ "github.com/Strob0t/devorch/internal/adapter/gitlocal"
	_ "github.com/Strob0t/devorch/internal/adapter/heuristic"
	_ "github.com/Strob0t/devorch/internal/adapter/litellm"
)
