//go:build !race

package jobsculpt

func passwordHashCost() int {
	return 12
}
