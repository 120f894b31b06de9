package nexus

import "testing"

func TestRateLimitInfo_IsNearLimit(t *testing.T) {
	tests := []struct {
		name string
		info RateLimitInfo
		want bool
	}{
		{
			name: "plenty remaining",
			info: RateLimitInfo{HourlyLimit: 100, HourlyRemaining: 80, DailyLimit: 2500, DailyRemaining: 2000},
			want: false,
		},
		{
			name: "hourly near limit",
			info: RateLimitInfo{HourlyLimit: 100, HourlyRemaining: 5, DailyLimit: 2500, DailyRemaining: 2000},
			want: true,
		},
		{
			name: "daily near limit",
			info: RateLimitInfo{HourlyLimit: 100, HourlyRemaining: 80, DailyLimit: 2500, DailyRemaining: 50},
			want: true,
		},
		{
			name: "zero limits treated as unknown",
			info: RateLimitInfo{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.IsNearLimit(); got != tt.want {
				t.Errorf("IsNearLimit() = %v, want %v", got, tt.want)
			}
		})
	}
}
