package device

import "golang.org/x/sys/cpu"

// HostFeatures lists the SIMD features of the host CPU that emulates the device.
func HostFeatures() []string {
	var features []string
	add := func(has bool, name string) {
		if has {
			features = append(features, name)
		}
	}
	add(cpu.X86.HasAVX, "avx")
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.X86.HasAVX512F, "avx512f")
	add(cpu.ARM64.HasASIMD, "neon")
	add(cpu.ARM64.HasFPHP, "fp16")
	add(cpu.ARM64.HasSVE, "sve")
	return features
}
