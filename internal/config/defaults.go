package config

// Default returns the built-in configuration used when no config file is
// given: the LocalLLM Studio checkout layout with the llama.cpp binding
// fetched prebuilt first and compiled from source as a fallback.
func Default() Config {
	return Config{
		App: AppMeta{
			Name:       "LocalLLM Studio",
			Version:    "1.0.0",
			Identifier: "com.localllm.studio",
			DarkMode:   true,
		},
		OutputDir: "dist",
		SourceTrees: []SourceTree{
			{Root: "app", Dest: "app"},
			{Root: "ui/static", Dest: "app/static"},
		},
		Backends: map[string]string{
			"macos":   "app/shell/cocoa",
			"windows": "app/shell/win32",
			"linux":   "app/shell/gtk",
		},
		Exclude: []string{
			"*_test.py",
			"testdata",
			"tkinter", // large GUI toolkit the app never imports
		},
		Required: []string{
			"app/main.py",
			"app/static/index.html",
		},
		Dependencies: []Dependency{
			{
				Name:     "llama-binding",
				Required: true,
				Strategies: []Strategy{
					{Kind: "prebuilt", URL: "https://artifacts.localllm.dev/llama-binding/{os}-{arch}-{accel}.tar.gz"},
					{Kind: "source", Dir: "third_party/llama.cpp"},
				},
			},
			{
				Name:     "ui-server",
				Required: true,
				Strategies: []Strategy{
					{Kind: "local", Dir: "server"},
				},
			},
		},
	}
}
