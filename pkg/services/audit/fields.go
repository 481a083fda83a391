package audit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

const allPassed = "All passed"

// EvaluateName reports the package name.
func EvaluateName(name string) domain.EvaluatedField {
	if strings.TrimSpace(name) == "" {
		return domain.Error("Package name is empty")
	}
	return domain.Pass(name)
}

// EvaluatePath reports where the package facts came from.
func EvaluatePath(path string) domain.EvaluatedField {
	if strings.TrimSpace(path) == "" {
		return domain.Error("Package path is empty")
	}
	return domain.Pass(path)
}

// EvaluateVendor only warns on an empty vendor.
func EvaluateVendor(vendor string) domain.EvaluatedField {
	if vendor == "" {
		return domain.Warning("Vendor is empty")
	}
	return domain.Pass(vendor)
}

// EvaluateLicense checks every newline separated license against the allow-list.
// Packages and modules share this rule.
func EvaluateLicense(value string, allowed []string) domain.EvaluatedField {
	var licenses, offending []string
	for _, l := range strings.Split(value, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || slices.Contains(licenses, l) {
			continue
		}
		licenses = append(licenses, l)
		if !slices.Contains(allowed, l) {
			offending = append(offending, l)
		}
	}

	if len(licenses) == 0 {
		return domain.Warning("No license found")
	}
	if len(offending) > 0 {
		return domain.Warning(fmt.Sprintf("License not approved: %s", strings.Join(offending, ", ")))
	}
	return domain.Pass(strings.Join(licenses, ", "))
}

// EvaluatePackageSignature warns on an unsigned package.
func EvaluatePackageSignature(present bool, signer string) domain.EvaluatedField {
	if !present {
		return domain.Warning("Package is not signed")
	}
	return domain.Pass(signedBy(signer))
}

// EvaluateModuleSignature is stricter than the package rule: an unsigned module
// is untrusted on its own.
func EvaluateModuleSignature(present bool, signer string) domain.EvaluatedField {
	if !present {
		return domain.Error("Module is not signed")
	}
	return domain.Pass(signedBy(signer))
}

func signedBy(signer string) string {
	if signer == "" {
		return "Signed"
	}
	return "Signed by " + signer
}

// EvaluateWeakModuleHook passes when install/uninstall scripts register the
// modules with weak-modules, or when the package only carries debug data.
func EvaluateWeakModuleHook(invoked bool, packageName string) domain.EvaluatedField {
	if invoked {
		return domain.Pass("weak-modules invoked")
	}
	if IsDebugPackage(packageName) {
		return domain.Pass("Debug package, weak-modules not required")
	}
	return domain.Error("weak-modules is not invoked by install/uninstall scripts")
}

// IsDebugPackage matches -debuginfo and -debugsource packages.
func IsDebugPackage(name string) bool {
	for _, marker := range []string{"-debuginfo", "-debugsource"} {
		if strings.HasSuffix(name, marker) || strings.Contains(name, marker+"-") {
			return true
		}
	}
	return false
}

// EvaluateModuleSupported grades the supported flag of a module shipped in a
// package. Only the vendor tokens pass: a module claiming in-house support
// cannot come from a third-party package.
func EvaluateModuleSupported(flags []string, vendorTokens []string) domain.EvaluatedField {
	switch len(flags) {
	case 0:
		return domain.Error("No supported flag found")
	case 1:
		if slices.Contains(vendorTokens, flags[0]) {
			return domain.Pass(flags[0])
		}
		return domain.Error(fmt.Sprintf("Unexpected supported flag: %s", flags[0]))
	default:
		return domain.Error(fmt.Sprintf("Multiple values found: %s", strings.Join(flags, ", ")))
	}
}

// EvaluateLiveSupported grades the supported flag of a module found on a
// running system, where in-house modules are expected next to vendor ones.
func EvaluateLiveSupported(flags []string, liveTokens []string) domain.EvaluatedField {
	if len(flags) == 0 {
		return domain.Error("Module is not supported: no supported flag found")
	}
	if len(flags) > 1 {
		return domain.Error(fmt.Sprintf("Multiple values found: %s", strings.Join(flags, ", ")))
	}

	flag := flags[0]
	if !slices.Contains(liveTokens, flag) {
		return domain.Error(fmt.Sprintf("Module is not supported: %s", flag))
	}
	switch flag {
	case SupportedInHouse:
		return domain.Pass("Supported by the OS vendor")
	case SupportedExternal:
		return domain.Pass("Supported by the OS vendor and the hardware vendor")
	default:
		return domain.Pass(flag)
	}
}
