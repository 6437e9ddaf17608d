// Package advisory serves the dashboard's farm-advisory data: current
// weather for a coordinate and mandi (wholesale market) commodity prices.
// Both are thin proxies over public upstream APIs with bounded timeouts;
// upstream failures surface as 502 rather than hanging the dashboard.
package advisory
