package service

// RewardPolicy maps minutes slept to coins earned. Implementations must be
// pure and return a non-negative award for any non-negative duration.
type RewardPolicy interface {
	Reward(durationMinutes int) int
}

// RewardFunc adapts a plain function to RewardPolicy.
type RewardFunc func(durationMinutes int) int

func (f RewardFunc) Reward(durationMinutes int) int { return f(durationMinutes) }

// PerMinute awards one coin per minute slept.
type PerMinute struct{}

func (PerMinute) Reward(durationMinutes int) int {
	if durationMinutes < 0 {
		return 0
	}
	return durationMinutes
}
