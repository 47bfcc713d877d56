package sqlinline

const QSelectGuestUsage = `--sql 2e0e339e-5022-470c-9379-64818f07650c
select device_id, day, count
from guest_usage
where device_id = $1::text;
`

const QUpsertGuestUsage = `--sql adc4cb6f-dc58-4389-a3a5-fa57ca8cb758
insert into guest_usage (device_id, day, count, updated_at)
values ($1::text, $2::text, $3::int, now())
on conflict (device_id) do update set
  day = excluded.day,
  count = excluded.count,
  updated_at = now();
`
