package sqlinline

const QIncrementAnalyticsDaily = `--sql 420841ae-56e5-4386-8b4c-87326896ab98
insert into analytics_daily (
  day, enhancements, guest_actions, credits_consumed, ad_rewards, plan_changes, credits_granted, principals_removed, signups
)
values (
  $1::date, $2::int, $3::int, $4::int, $5::int, $6::int, $7::int, $8::int, $9::int
)
on conflict (day) do update set
  enhancements = analytics_daily.enhancements + excluded.enhancements,
  guest_actions = analytics_daily.guest_actions + excluded.guest_actions,
  credits_consumed = analytics_daily.credits_consumed + excluded.credits_consumed,
  ad_rewards = analytics_daily.ad_rewards + excluded.ad_rewards,
  plan_changes = analytics_daily.plan_changes + excluded.plan_changes,
  credits_granted = analytics_daily.credits_granted + excluded.credits_granted,
  principals_removed = analytics_daily.principals_removed + excluded.principals_removed,
  signups = analytics_daily.signups + excluded.signups,
  updated_at = now();
`

const QSelectLatestAnalyticsDaily = `--sql d0cdfae0-29bc-484e-b322-2c6fa046381b
select
  to_char(day, 'YYYY-MM-DD'),
  enhancements,
  guest_actions,
  credits_consumed,
  ad_rewards,
  plan_changes,
  credits_granted,
  principals_removed,
  signups,
  created_at,
  updated_at
from analytics_daily
order by day desc
limit 1;
`
