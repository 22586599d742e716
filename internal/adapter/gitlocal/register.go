package gitlocal

import "github.com/Strob0t/devorch/internal/port/gitprovider"

func init() {
	gitprovider.Register(providerName, func(repoPath string, opts gitprovider.Options) (gitprovider.Repository, error) {
		return NewProvider(repoPath, opts), nil
	})
}
